package invoice

import (
	"encoding/json"
	"time"

	"github.com/zombor/invoice-analyzer/internal/debt"
	"github.com/zombor/invoice-analyzer/internal/extraction"
)

// Status of a stored analysis.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Analysis is one analyzed upload, successful or not.
type Analysis struct {
	ID          string                    `json:"id"`
	Filename    string                    `json:"filename,omitempty"` // Archived upload, empty when not kept
	ContentType string                    `json:"content_type"`
	Status      Status                    `json:"status"`
	Reason      string                    `json:"reason,omitempty"`
	Stage       string                    `json:"stage,omitempty"`
	Error       string                    `json:"error,omitempty"`
	RawResponse string                    `json:"raw_response,omitempty"`
	Result      *extraction.InvoiceRecord `json:"result,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// Succeeded reports whether the analysis produced an invoice record.
func (a *Analysis) Succeeded() bool {
	return a.Status == StatusSucceeded && a.Result != nil
}

// DebtQuery is a debt query that was sent, with its answer.
type DebtQuery struct {
	ID         string          `json:"id"`
	AnalysisID string          `json:"analysis_id,omitempty"`
	Query      debt.Query      `json:"query"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
