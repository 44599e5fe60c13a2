package extraction

import (
	"fmt"
	"strings"

	"github.com/zombor/invoice-analyzer/internal/modality"
	"github.com/zombor/invoice-analyzer/internal/registry"
)

const companyPrompt = `Analiza esta factura y proporciona la siguiente información en formato JSON:

{
    "company_names": ["nombre1", "nombre2", ...],
    "category": "categoría del servicio",
    "invoice_type": "tipo de factura"
}

Instrucciones específicas:
1. Identifica todos los nombres comerciales posibles de la compañía
2. Si el nombre es compuesto (ej: "Camuzzi Pampeana"), incluye tanto el nombre completo como sus partes
3. Incluye abreviaturas y nombres alternativos
4. Identifica la categoría del servicio (gas, electricidad, telecomunicaciones, etc.)
5. Identifica el tipo de factura (residencial, comercial, industrial)
6. No incluyas direcciones, códigos postales u otra información
7. Responde SOLO con el JSON, sin texto adicional`

// CompanyPrompt is the company identification prompt.
func CompanyPrompt() string {
	return companyPrompt
}

var dataTypeText = map[registry.DataType]string{
	registry.DataTypeNumeric:      "numérico (solo dígitos)",
	registry.DataTypeAlphanumeric: "alfanumérico",
	registry.DataTypeAmount:       "importe/monto",
	registry.DataTypeBarcode:      "código de barras",
}

// IdentifiersPrompt builds the extraction prompt for the identifiers,
// listing each description with its type and length constraints.
func IdentifiersPrompt(identifiers []modality.Identifier) string {
	var detailed, template []string
	for _, id := range identifiers {
		detailed = append(detailed, describeIdentifier(id.IdentifierSpec))
		template = append(template, fmt.Sprintf("  %q: \"valor\"", id.Description))
	}
	template = append(template,
		`  "valor_factura": "monto"`,
		`  "fecha_vencimiento": "fecha"`,
		`  "nombre_cliente": "nombre"`,
	)

	var b strings.Builder
	b.WriteString("Analiza esta factura y extrae la siguiente información:\n\n")
	b.WriteString("1. Extrae los siguientes datos específicos con las restricciones indicadas:\n")
	b.WriteString(strings.Join(detailed, "\n"))
	b.WriteString("\n\n2. Información general de la factura:\n")
	b.WriteString("   - Valor total de la factura\n")
	b.WriteString("   - Fecha de vencimiento\n")
	b.WriteString("   - Nombre del cliente o titular\n\n")
	b.WriteString("Responde ÚNICAMENTE en este formato JSON simplificado:\n\n{\n")
	b.WriteString(strings.Join(template, ",\n"))
	b.WriteString("\n}\n\n")
	b.WriteString(`IMPORTANTE:
- Los valores deben cumplir con las restricciones de tipo y longitud especificadas.
- Para identificadores numéricos (NUM), utiliza solo dígitos sin espacios, puntos ni guiones.
- Para identificadores alfanuméricos (ALF), elimina espacios, puntos y guiones.
- Para códigos de barras (CBA), extrae todos los dígitos sin espacios.
- Para importes/montos (IMP), usa formato de número con punto decimal.
- La fecha de vencimiento debe estar en formato AAAA-MM-DD.
- La respuesta debe ser SOLO el JSON, sin texto adicional antes o después.`)
	return b.String()
}

func describeIdentifier(spec registry.IdentifierSpec) string {
	desc := "   - " + spec.Description

	var restrictions []string
	if text, ok := dataTypeText[spec.DataType]; ok {
		restrictions = append(restrictions, "tipo "+text)
	}
	if length := lengthText(int(spec.MinLength), int(spec.MaxLength)); length != "" {
		restrictions = append(restrictions, length)
	}
	if len(restrictions) > 0 {
		desc += " (" + strings.Join(restrictions, ", ") + ")"
	}

	if spec.HelpText != "" {
		desc += "\n     Ubicación: " + spec.HelpText
	}
	return desc
}

func lengthText(lo, hi int) string {
	switch {
	case lo > 0 && lo == hi:
		return fmt.Sprintf("exactamente %d caracteres", lo)
	case lo > 0 && hi > 0:
		return fmt.Sprintf("mínimo %d caracteres, máximo %d caracteres", lo, hi)
	case lo > 0:
		return fmt.Sprintf("mínimo %d caracteres", lo)
	case hi > 0:
		return fmt.Sprintf("máximo %d caracteres", hi)
	default:
		return ""
	}
}
