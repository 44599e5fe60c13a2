// Package debt sends debt queries built from analyzed invoices to the
// external debt service.
package debt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zombor/invoice-analyzer/internal/extraction"
)

// DefaultClientID identifies this system to the debt service.
const DefaultClientID = "pdf-analyzer"

// ErrInvalidQuery is returned by Validate.
var ErrInvalidQuery = errors.New("invalid debt query")

// Query is the debt service request body.
type Query struct {
	CompanyCode       string          `json:"companyCode"`
	ModalityID        string          `json:"modalityId"`
	QueryData         json.RawMessage `json:"queryData"`
	ExternalRequestID string          `json:"externalRequestId"`
	ExternalClientID  string          `json:"externalClientId"`
}

// NewQuery builds a Query with a fresh request id.
func NewQuery(companyCode, modalityID string, queryData json.RawMessage, clientID string) Query {
	if clientID == "" {
		clientID = DefaultClientID
	}
	return Query{
		CompanyCode:       companyCode,
		ModalityID:        modalityID,
		QueryData:         queryData,
		ExternalRequestID: "ext-" + uuid.NewString(),
		ExternalClientID:  clientID,
	}
}

// QueryFromRecord builds the query for one modality of an analyzed
// invoice, sending the identifier values found for it.
func QueryFromRecord(record *extraction.InvoiceRecord, modalityID, clientID string) (Query, error) {
	view, ok := record.Modality(modalityID)
	if !ok {
		return Query{}, fmt.Errorf("%w: modality %q not in record", ErrInvalidQuery, modalityID)
	}

	data, err := json.Marshal(view.Identifiers)
	if err != nil {
		return Query{}, fmt.Errorf("encoding query data: %w", err)
	}
	return NewQuery(record.CompanyCode, modalityID, data, clientID), nil
}

// Validate reports the missing required fields.
func (q Query) Validate() error {
	var missing []string
	if q.CompanyCode == "" {
		missing = append(missing, "companyCode")
	}
	if q.ModalityID == "" {
		missing = append(missing, "modalityId")
	}
	if isEmptyJSON(q.QueryData) {
		missing = append(missing, "queryData")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ValidationError lists the fields a Query is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: missing %v", ErrInvalidQuery, e.Missing)
}

// Messages renders one user-facing message per missing field.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		out = append(out, fmt.Sprintf("Falta el parámetro '%s'", f))
	}
	return out
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuery
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}
