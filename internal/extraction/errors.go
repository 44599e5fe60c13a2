package extraction

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Analyze matches exactly one of
// these with errors.Is.
var (
	ErrRegistryLoad     = errors.New("registry could not be loaded")
	ErrInvalidImage     = errors.New("invalid invoice image")
	ErrExternalCall     = errors.New("model call failed")
	ErrStageAParse      = errors.New("company identification failed")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrNoActiveModality = errors.New("company has no active modality")
	ErrStageBParse      = errors.New("identifier extraction failed")
)

// Stage names which step of an analysis an error came from.
type Stage string

const (
	StageSetup       Stage = "setup"
	StageCompany     Stage = "company"
	StageIdentifiers Stage = "identifiers"
)

// AnalysisError is a terminal analysis failure with its diagnostics.
type AnalysisError struct {
	Stage Stage
	Kind  error
	// RawResponse is the model text that could not be used, if any.
	RawResponse string
	Err         error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func failure(stage Stage, kind error, raw string, err error) *AnalysisError {
	return &AnalysisError{Stage: stage, Kind: kind, RawResponse: raw, Err: err}
}

var reasons = []struct {
	kind error
	code string
}{
	{ErrRegistryLoad, "registry_load"},
	{ErrInvalidImage, "invalid_image"},
	{ErrExternalCall, "external_call"},
	{ErrStageAParse, "company_identification"},
	{ErrCompanyNotFound, "company_not_found"},
	{ErrNoActiveModality, "no_active_modality"},
	{ErrStageBParse, "identifier_extraction"},
}

// Reason returns a stable code for err, "unknown" for foreign errors and
// "" for nil.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.kind) {
			return r.code
		}
	}
	return "unknown"
}
