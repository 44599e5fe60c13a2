// Package modality works out which identifiers must be read from an
// invoice for a matched company.
package modality

import (
	"errors"
	"fmt"

	"github.com/zombor/invoice-analyzer/internal/registry"
)

// ErrNoActiveModalities is returned when a company has no active modality.
var ErrNoActiveModalities = errors.New("no active modalities")

const (
	barcodeType        = "barcode"
	barcodeName        = "BARCODE"
	barcodeDescription = "Código de Barras"
	barcodeHelp        = "Código de barras ubicado en la factura"
)

// Identifier is an identifier to extract, tied to the modality needing it.
type Identifier struct {
	registry.IdentifierSpec
	ModalityID    string
	ModalityIndex int
}

// Resolution is the outcome of resolving a company's modalities.
type Resolution struct {
	Active      []registry.Modality
	Identifiers []Identifier
	// Synthesized is set when no modality declared a usable identifier
	// and one was generated per modality instead.
	Synthesized bool
}

// ForModality returns the identifiers belonging to the modality id.
func (r Resolution) ForModality(id string) []Identifier {
	var out []Identifier
	for _, ident := range r.Identifiers {
		if ident.ModalityID == id {
			out = append(out, ident)
		}
	}
	return out
}

// Resolve filters the active modalities of company and collects the
// identifiers they require.
func Resolve(company registry.CompanyRecord) (Resolution, error) {
	var res Resolution
	for _, m := range company.Modalities {
		if m.IsActive() {
			res.Active = append(res.Active, m)
		}
	}
	if len(res.Active) == 0 {
		return Resolution{}, fmt.Errorf("company %s: %w", company.CompanyCode, ErrNoActiveModalities)
	}

	for i, m := range res.Active {
		for _, item := range m.QueryData.Items {
			if !item.Complete() {
				continue
			}
			res.Identifiers = append(res.Identifiers, Identifier{
				IdentifierSpec: item,
				ModalityID:     m.ModalityID,
				ModalityIndex:  i,
			})
		}
	}

	if len(res.Identifiers) == 0 {
		res.Synthesized = true
		for i, m := range res.Active {
			res.Identifiers = append(res.Identifiers, Identifier{
				IdentifierSpec: fallbackSpec(i, m),
				ModalityID:     m.ModalityID,
				ModalityIndex:  i,
			})
		}
	}
	return res, nil
}

func fallbackSpec(i int, m registry.Modality) registry.IdentifierSpec {
	if m.ModalityType == barcodeType {
		return registry.IdentifierSpec{
			IdentifierName: barcodeName,
			Description:    barcodeDescription,
			DataType:       registry.DataTypeAlphanumeric,
			HelpText:       barcodeHelp,
		}
	}

	generated := fmt.Sprintf("ID_%d", i)
	if m.QueryData.Form == registry.FormList {
		for _, item := range m.QueryData.Items {
			if item.Description == "" {
				continue
			}
			spec := item
			if spec.IdentifierName == "" {
				spec.IdentifierName = generated
			}
			if spec.DataType == "" {
				spec.DataType = registry.DataTypeAlphanumeric
			}
			return spec
		}
	}

	title := m.ModalityTitle
	if title == "" {
		title = fmt.Sprintf("Modalidad %d", i+1)
	}
	return registry.IdentifierSpec{
		IdentifierName: generated,
		Description:    title,
		DataType:       registry.DataTypeAlphanumeric,
	}
}
