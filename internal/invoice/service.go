package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-analyzer/internal/debt"
	"github.com/zombor/invoice-analyzer/internal/extraction"
)

// IDGenerator generates unique IDs for stored items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates time-ordered UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Analyzer reads an invoice image.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mediaType string) (*extraction.InvoiceRecord, error)
}

// DebtQuerier sends a debt query.
type DebtQuerier interface {
	Query(ctx context.Context, q debt.Query) (json.RawMessage, error)
}

// Service handles invoice analyses and debt queries
type Service struct {
	db          DB
	analyzer    Analyzer
	storage     Storage
	debts       DebtQuerier
	clientID    string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service. debts may be nil, in which case debt
// queries are validated and echoed back without being sent.
func NewService(db DB, analyzer Analyzer, storage Storage, debts DebtQuerier, clientID string) *Service {
	return NewServiceWithDeps(db, analyzer, storage, debts, clientID, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, analyzer Analyzer, storage Storage, debts DebtQuerier, clientID string, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		analyzer:    analyzer,
		storage:     storage,
		debts:       debts,
		clientID:    clientID,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename shortens phone-generated names and drops characters
// that are unsafe on disk.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "factura"
	}
	return base + ext
}

// AnalyzeInvoice archives the upload, analyzes it and stores the outcome.
// A failed analysis is stored and returned with StatusFailed and a nil
// error; the error is only set when the upload could not be handled.
func (s *Service) AnalyzeInvoice(ctx context.Context, filename string, data []byte, contentType string) (*Analysis, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	analysis := &Analysis{
		ID:          id,
		Filename:    savedName,
		ContentType: contentType,
		CreatedAt:   now,
	}

	record, err := s.analyzer.Analyze(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to analyze invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"reason", extraction.Reason(err),
			"error", err,
		)
		if delErr := s.storage.Delete(savedName); delErr != nil {
			slog.Error("Failed to delete upload", "filename", savedName, "error", delErr)
		}

		analysis.Filename = ""
		analysis.Status = StatusFailed
		analysis.Reason = extraction.Reason(err)
		analysis.Error = err.Error()

		var analysisErr *extraction.AnalysisError
		if errors.As(err, &analysisErr) {
			analysis.Stage = string(analysisErr.Stage)
			analysis.RawResponse = analysisErr.RawResponse
		}
	} else {
		analysis.Status = StatusSucceeded
		analysis.Result = record
	}

	if err := s.db.SaveAnalysis(analysis); err != nil {
		if analysis.Filename != "" {
			s.storage.Delete(analysis.Filename)
		}
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	slog.Info("Invoice analyzed", "id", id, "status", analysis.Status, "reason", analysis.Reason)
	return analysis, nil
}

// GetAnalysis returns a stored analysis
func (s *Service) GetAnalysis(id string) (*Analysis, error) {
	return s.db.GetAnalysis(id)
}

// ListAnalyses returns all stored analyses
func (s *Service) ListAnalyses() ([]*Analysis, error) {
	return s.db.ListAnalyses()
}

// GetAnalysisFile returns the archived upload of an analysis
func (s *Service) GetAnalysisFile(id string) ([]byte, string, error) {
	analysis, err := s.db.GetAnalysis(id)
	if err != nil {
		return nil, "", err
	}
	if analysis.Filename == "" {
		return nil, "", fmt.Errorf("file for analysis %s: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(analysis.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting file: %w", err)
	}
	return data, analysis.ContentType, nil
}

// DeleteAnalysis removes an analysis and its archived upload
func (s *Service) DeleteAnalysis(id string) error {
	analysis, err := s.db.GetAnalysis(id)
	if err != nil {
		return err
	}

	if analysis.Filename != "" {
		if err := s.storage.Delete(analysis.Filename); err != nil {
			slog.Error("Failed to delete upload", "id", id, "filename", analysis.Filename, "error", err)
		}
	}

	if err := s.db.DeleteAnalysis(id); err != nil {
		return fmt.Errorf("deleting analysis: %w", err)
	}
	return nil
}

// DebtRequest is a debt query as callers submit it.
type DebtRequest struct {
	CompanyCode string          `json:"companyCode"`
	ModalityID  string          `json:"modalityId"`
	QueryData   json.RawMessage `json:"queryData"`
}

// DebtResult is the outcome of QueryDebt.
type DebtResult struct {
	Query    debt.Query
	// Response is the debt service answer, nil when Sent is false.
	Response json.RawMessage
	Sent     bool
}

// QueryDebt validates the request and sends it to the debt service when
// one is configured.
func (s *Service) QueryDebt(ctx context.Context, req DebtRequest) (*DebtResult, error) {
	q := debt.NewQuery(req.CompanyCode, req.ModalityID, req.QueryData, s.clientID)
	return s.sendDebtQuery(ctx, "", q)
}

// QueryDebtForAnalysis sends the identifiers found by a stored analysis
// for one of its modalities.
func (s *Service) QueryDebtForAnalysis(ctx context.Context, analysisID, modalityID string) (*DebtResult, error) {
	analysis, err := s.db.GetAnalysis(analysisID)
	if err != nil {
		return nil, err
	}
	if !analysis.Succeeded() {
		return nil, fmt.Errorf("analysis %s has no result: %w", analysisID, debt.ErrInvalidQuery)
	}

	q, err := debt.QueryFromRecord(analysis.Result, modalityID, s.clientID)
	if err != nil {
		return nil, err
	}
	return s.sendDebtQuery(ctx, analysisID, q)
}

// ListDebtQueries returns stored debt queries, optionally for one analysis
func (s *Service) ListDebtQueries(analysisID string) ([]*DebtQuery, error) {
	return s.db.ListDebtQueries(analysisID)
}

func (s *Service) sendDebtQuery(ctx context.Context, analysisID string, q debt.Query) (*DebtResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.debts == nil {
		return &DebtResult{Query: q}, nil
	}

	record := &DebtQuery{
		ID:         s.idGenerator.Generate(),
		AnalysisID: analysisID,
		Query:      q,
		CreatedAt:  s.timeSource.Now(),
	}

	resp, queryErr := s.debts.Query(ctx, q)
	if queryErr != nil {
		record.Error = queryErr.Error()
	} else {
		record.Response = resp
	}

	if err := s.db.SaveDebtQuery(record); err != nil {
		slog.Error("Failed to save debt query", "id", record.ID, "error", err)
	}

	if queryErr != nil {
		return nil, fmt.Errorf("querying debt: %w", queryErr)
	}
	return &DebtResult{Query: q, Response: resp, Sent: true}, nil
}
