package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/invoice-analyzer/internal/debt"
	"github.com/zombor/invoice-analyzer/internal/vision"
)

// maxUploadSize handles high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// allowedExtensions are the upload formats accepted by /analyze
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".pdf":  true,
	".webp": true,
	".heic": true,
	".heif": true,
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status and CORS headers set
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeFailure writes the {success:false} envelope
func writeFailure(w http.ResponseWriter, code int, message string, logs []string) {
	if logs == nil {
		logs = []string{}
	}
	writeJSON(w, code, map[string]any{
		"success": false,
		"error":   message,
		"logs":    logs,
	})
}

// corsError writes a plain error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Servidor funcionando correctamente",
		"version": s.version,
	})
}

// handleAnalyze analyzes an uploaded invoice
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusBadRequest, "El archivo es demasiado grande. El tamaño máximo es 50MB", nil)
			return
		}
		writeFailure(w, http.StatusBadRequest, "No se ha enviado ningún archivo", nil)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "No se ha enviado ningún archivo", nil)
		return
	}
	defer f.Close()

	if header.Filename == "" {
		writeFailure(w, http.StatusBadRequest, "No se ha seleccionado ningún archivo", nil)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		writeFailure(w, http.StatusBadRequest, "Formato de archivo no permitido. Use: PNG, JPG, JPEG, GIF, PDF, WEBP o HEIC", nil)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeFailure(w, http.StatusInternalServerError, "Error al leer el archivo", nil)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = vision.MediaTypeForFilename(header.Filename)
	}

	analysis, err := s.service.AnalyzeInvoice(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error analyzing invoice", "filename", header.Filename, "error", err)
		writeFailure(w, http.StatusInternalServerError, "Error en el servidor", []string{err.Error()})
		return
	}

	if !analysis.Succeeded() {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":      false,
			"error":        "No se pudieron extraer datos de la factura",
			"analysis_id":  analysis.ID,
			"reason":       analysis.Reason,
			"stage":        analysis.Stage,
			"raw_response": analysis.RawResponse,
			"logs":         []string{analysis.Error},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"data":        analysis.Result,
		"analysis_id": analysis.ID,
	})
}

// handleQueryDebt validates a debt query and sends it when a debt
// service is configured
func (s *Server) handleQueryDebt(w http.ResponseWriter, r *http.Request) {
	var req DebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "No se recibieron datos para la consulta",
			[]string{"Error: No se recibieron datos para la consulta"})
		return
	}

	result, err := s.service.QueryDebt(r.Context(), req)
	if err != nil {
		s.writeDebtError(w, err)
		return
	}
	writeDebtResult(w, result)
}

// handleQueryAnalysisDebt sends the identifiers of a stored analysis
func (s *Server) handleQueryAnalysisDebt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModalityID string `json:"modalityId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "No se recibieron datos para la consulta", nil)
		return
	}

	result, err := s.service.QueryDebtForAnalysis(r.Context(), r.PathValue("id"), req.ModalityID)
	if err != nil {
		s.writeDebtError(w, err)
		return
	}
	writeDebtResult(w, result)
}

func writeDebtResult(w http.ResponseWriter, result *DebtResult) {
	if !result.Sent {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Consulta de deuda recibida correctamente",
			"data": map[string]any{
				"companyCode": result.Query.CompanyCode,
				"modalityId":  result.Query.ModalityID,
				"queryData":   result.Query.QueryData,
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Consulta de deuda realizada correctamente",
		"request": result.Query,
		"data":    result.Response,
	})
}

func (s *Server) writeDebtError(w http.ResponseWriter, err error) {
	var validation *debt.ValidationError
	var status *debt.StatusError
	switch {
	case errors.As(err, &validation):
		writeFailure(w, http.StatusBadRequest, "Parámetros inválidos", validation.Messages())
	case errors.Is(err, debt.ErrInvalidQuery):
		writeFailure(w, http.StatusBadRequest, "Parámetros inválidos", []string{err.Error()})
	case errors.Is(err, ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Análisis no encontrado", nil)
	case errors.As(err, &status):
		slog.Error("Debt service rejected query", "status", status.StatusCode, "error", err)
		writeFailure(w, http.StatusBadGateway, "Error en la consulta de deuda", []string{err.Error()})
	default:
		slog.Error("Error querying debt", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Error en el servidor", []string{err.Error()})
	}
}

// handleListAnalyses returns all stored analyses
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := s.service.ListAnalyses()
	if err != nil {
		slog.Error("Error listing analyses", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

// handleGetAnalysis returns a single analysis
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.service.GetAnalysis(r.PathValue("id"))
	if err != nil {
		corsError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// handleGetAnalysisFile returns the archived upload for an analysis
func (s *Server) handleGetAnalysisFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetAnalysisFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListAnalysisDebt returns the debt queries sent for an analysis
func (s *Server) handleListAnalysisDebt(w http.ResponseWriter, r *http.Request) {
	queries, err := s.service.ListDebtQueries(r.PathValue("id"))
	if err != nil {
		slog.Error("Error listing debt queries", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

// handleDeleteAnalysis deletes an analysis and its file
func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAnalysis(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Analysis not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting analysis", "error", err)
		corsError(w, "Error deleting analysis", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}
