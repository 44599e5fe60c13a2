// Package extraction reads the issuing company and its debt query
// identifiers from an invoice image using two model calls.
package extraction

import (
	"context"
	"log/slog"
	"time"

	"github.com/zombor/invoice-analyzer/internal/matching"
	"github.com/zombor/invoice-analyzer/internal/metrics"
	"github.com/zombor/invoice-analyzer/internal/modality"
	"github.com/zombor/invoice-analyzer/internal/registry"
	"github.com/zombor/invoice-analyzer/internal/vision"
)

// Companies supplies the registry records.
type Companies interface {
	Companies() ([]registry.CompanyRecord, error)
}

// Analyzer runs the company and identifier stages against a model.
type Analyzer struct {
	companies     Companies
	model         vision.Model
	matcher       *matching.Matcher
	logger        *slog.Logger
	metrics       *metrics.Metrics
	companyParser *Parser
}

// NewAnalyzer creates an Analyzer with the default matcher and logger.
func NewAnalyzer(companies Companies, model vision.Model) *Analyzer {
	return NewAnalyzerWithDeps(companies, model, matching.NewMatcher(), slog.Default(), nil)
}

// NewAnalyzerWithDeps creates an Analyzer with explicit dependencies.
// A nil matcher or logger gets the default; m may be nil.
func NewAnalyzerWithDeps(companies Companies, model vision.Model, matcher *matching.Matcher, logger *slog.Logger, m *metrics.Metrics) *Analyzer {
	if matcher == nil {
		matcher = matching.NewMatcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		companies:     companies,
		model:         model,
		matcher:       matcher,
		logger:        logger,
		metrics:       m,
		companyParser: NewParser(FencedJSON{}, EmbeddedJSON{}),
	}
}

// Analyze reads an uploaded invoice of the given media type. On failure
// it returns a nil record and an *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, mediaType string) (*InvoiceRecord, error) {
	start := time.Now()
	record, err := a.analyze(ctx, data, mediaType)
	a.metrics.ObserveAnalysisLatency(time.Since(start))
	if err != nil {
		a.metrics.IncrementOutcome(Reason(err))
		return nil, err
	}
	a.metrics.IncrementOutcome("success")
	return record, nil
}

func (a *Analyzer) analyze(ctx context.Context, data []byte, mediaType string) (*InvoiceRecord, error) {
	companies, err := a.companies.Companies()
	if err != nil {
		return nil, failure(StageSetup, ErrRegistryLoad, "", err)
	}

	img, err := vision.Prepare(data, mediaType)
	if err != nil {
		return nil, failure(StageSetup, ErrInvalidImage, "", err)
	}

	ident, raw, err := a.identifyCompany(ctx, img)
	if err != nil {
		return nil, err
	}

	match, ok := a.matcher.MatchFirstAlias(ident.Names, companies)
	if !ok {
		a.logger.Info("no registry company matched", "names", ident.Names)
		return nil, failure(StageCompany, ErrCompanyNotFound, raw, nil)
	}

	company := match.Candidate.Company
	a.logger.Info("company selected",
		"alias", match.Alias,
		"company_name", company.CompanyName,
		"company_code", company.CompanyCode,
		"matching_words", match.Candidate.MatchingWords,
		"exact_match", match.Candidate.ExactMatch,
		"significant_word", match.Candidate.HasSignificantWord,
		"score", match.Candidate.Score,
	)

	res, err := modality.Resolve(company)
	if err != nil {
		a.logger.Info("company has no active modalities", "company_code", company.CompanyCode)
		return nil, failure(StageCompany, ErrNoActiveModality, "", err)
	}

	a.logger.Info("identifiers to find",
		"active_modalities", len(res.Active),
		"identifiers", len(res.Identifiers),
		"synthesized", res.Synthesized,
	)
	for _, id := range res.Identifiers {
		a.logger.Debug("identifier",
			"modality_id", id.ModalityID,
			"name", id.IdentifierName,
			"description", id.Description,
			"data_type", id.DataType,
			"min_length", int(id.MinLength),
			"max_length", int(id.MaxLength),
		)
	}

	values, general, err := a.extractIdentifiers(ctx, img, res.Identifiers)
	if err != nil {
		return nil, err
	}

	return assemble(company, ident.Category, res, values, general), nil
}

func (a *Analyzer) identifyCompany(ctx context.Context, img vision.Image) (CompanyIdentification, string, error) {
	raw, err := a.complete(ctx, StageCompany, CompanyPrompt(), img)
	if err != nil {
		return CompanyIdentification{}, "", failure(StageCompany, ErrExternalCall, "", err)
	}

	parsed, err := a.companyParser.Parse(raw)
	if err != nil {
		a.logger.Warn("company response could not be parsed", "response", raw)
		return CompanyIdentification{}, raw, failure(StageCompany, ErrStageAParse, raw, err)
	}
	a.metrics.IncrementParseStrategy(string(StageCompany), parsed.Strategy)

	ident := identificationFromFields(parsed.Fields)
	a.logger.Info("company identified",
		"names", ident.Names,
		"category", ident.Category,
		"invoice_type", ident.InvoiceType,
	)
	return ident, raw, nil
}

func (a *Analyzer) extractIdentifiers(ctx context.Context, img vision.Image, identifiers []modality.Identifier) (map[identifierKey]string, generalFields, error) {
	raw, err := a.complete(ctx, StageIdentifiers, IdentifiersPrompt(identifiers), img)
	if err != nil {
		return nil, generalFields{}, failure(StageIdentifiers, ErrExternalCall, "", err)
	}

	descriptions := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		descriptions = append(descriptions, id.Description)
	}

	parser := NewParser(FencedJSON{}, EmbeddedJSON{}, LineFallback{Descriptions: descriptions})
	parsed, err := parser.Parse(raw)
	if err != nil {
		a.logger.Warn("identifier response could not be parsed", "response", raw)
		return nil, generalFields{}, failure(StageIdentifiers, ErrStageBParse, raw, err)
	}
	a.metrics.IncrementParseStrategy(string(StageIdentifiers), parsed.Strategy)
	a.logger.Info("identifier response parsed", "strategy", parsed.Strategy)

	values := make(map[identifierKey]string, len(identifiers))
	for _, id := range identifiers {
		v, ok := textValue(parsed.Fields[id.Description])
		if !ok {
			a.logger.Info("identifier not found", "description", id.Description)
			v = ""
		}
		values[keyOf(id)] = Sanitize(v)
	}

	return values, resolveGeneralFields(parsed.Fields), nil
}

func (a *Analyzer) complete(ctx context.Context, stage Stage, prompt string, img vision.Image) (string, error) {
	start := time.Now()
	raw, err := a.model.Complete(ctx, prompt, img)
	a.metrics.ObserveModelCall(string(stage), time.Since(start))
	if err != nil {
		a.logger.Error("model call failed", "stage", stage, "error", err)
		return "", err
	}
	a.logger.Debug("model response", "stage", stage, "response", raw)
	return raw, nil
}

func assemble(company registry.CompanyRecord, category string, res modality.Resolution, values map[identifierKey]string, general generalFields) *InvoiceRecord {
	record := &InvoiceRecord{
		CompanyName: company.CompanyName,
		CompanyCode: company.CompanyCode,
		Category:    category,
		Modalities:  make([]ModalityView, 0, len(res.Active)),
		Amount:      general.Amount,
		DueDate:     general.DueDate,
		Customer:    general.Customer,
	}

	for i, m := range res.Active {
		view := ModalityView{
			ModalityID:            m.ModalityID,
			ModalityType:          m.ModalityType,
			ModalityTitle:         m.ModalityTitle,
			QueryDataDescriptions: m.QueryData.Descriptions(),
			Identifiers:           map[string]string{},
		}
		for _, id := range res.Identifiers {
			if id.ModalityIndex == i {
				view.Identifiers[id.IdentifierName] = values[keyOf(id)]
			}
		}
		record.Modalities = append(record.Modalities, view)
	}
	return record
}

// identifierKey keeps identifiers of different modalities apart when
// they share a name.
type identifierKey struct {
	modality int
	name     string
}

func keyOf(id modality.Identifier) identifierKey {
	return identifierKey{modality: id.ModalityIndex, name: id.IdentifierName}
}
