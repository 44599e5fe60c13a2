package extraction

import "strings"

// InvoiceRecord is the result of a successful analysis.
type InvoiceRecord struct {
	CompanyName string         `json:"companyName"`
	CompanyCode string         `json:"companyCode"`
	Category    string         `json:"category"`
	Modalities  []ModalityView `json:"modalities"`
	Amount      string         `json:"valor_factura"`
	DueDate     string         `json:"fecha_vencimiento"`
	Customer    string         `json:"nombre_cliente"`
}

// ModalityView is an active modality with the identifier values read
// from the invoice.
type ModalityView struct {
	ModalityID            string            `json:"modalityId"`
	ModalityType          string            `json:"modalityType"`
	ModalityTitle         string            `json:"modalityTitle"`
	QueryDataDescriptions []string          `json:"queryDataDescriptions"`
	Identifiers           map[string]string `json:"identifiersEncontrados"`
}

// Modality returns the view for id.
func (r *InvoiceRecord) Modality(id string) (ModalityView, bool) {
	for _, m := range r.Modalities {
		if m.ModalityID == id {
			return m, true
		}
	}
	return ModalityView{}, false
}

// CompanyIdentification is what the company stage read from the invoice.
type CompanyIdentification struct {
	Names       []string
	Category    string
	InvoiceType string
}

func identificationFromFields(fields map[string]any) CompanyIdentification {
	var id CompanyIdentification

	switch names := fields["company_names"].(type) {
	case []any:
		for _, n := range names {
			if s, ok := n.(string); ok {
				id.Names = append(id.Names, s)
			}
		}
	case string:
		id.Names = []string{names}
	}

	if s, ok := fields["category"].(string); ok {
		id.Category = toLower(s)
	}
	if s, ok := fields["invoice_type"].(string); ok {
		id.InvoiceType = toLower(s)
	}
	return id
}

func toLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
