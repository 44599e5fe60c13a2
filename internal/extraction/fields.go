package extraction

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// JSON keys of the general invoice fields.
const (
	FieldAmount   = "valor_factura"
	FieldDueDate  = "fecha_vencimiento"
	FieldCustomer = "nombre_cliente"
)

// fieldDefaults is applied to every general field a response did not
// provide. An empty value counts as not provided.
var fieldDefaults = []struct {
	key   string
	value string
}{
	{FieldAmount, "0.00"},
	{FieldDueDate, ""},
	{FieldCustomer, ""},
}

// generalFields holds the three general fields with defaults applied.
type generalFields struct {
	Amount   string
	DueDate  string
	Customer string
}

func resolveGeneralFields(fields map[string]any) generalFields {
	values := make(map[string]string, len(fieldDefaults))
	for _, d := range fieldDefaults {
		v, ok := textValue(fields[d.key])
		if !ok {
			v = d.value
		}
		values[d.key] = v
	}

	return generalFields{
		Amount:   formatAmount(fields[FieldAmount], values[FieldAmount]),
		DueDate:  normalizeDate(values[FieldDueDate]),
		Customer: values[FieldCustomer],
	}
}

// textValue renders a decoded JSON value as text. Null, empty strings,
// objects and arrays are reported as absent.
func textValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// formatAmount renders numeric amounts with two decimals. Text amounts
// are kept as the model wrote them.
func formatAmount(raw any, text string) string {
	var n string
	switch t := raw.(type) {
	case json.Number:
		n = t.String()
	case float64:
		n = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return text
	}

	d, err := decimal.NewFromString(n)
	if err != nil {
		return text
	}
	return d.StringFixed(2)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	"02/01/06",
	"02.01.2006",
	time.RFC3339,
}

// normalizeDate returns the date as YYYY-MM-DD, or "" when it cannot be
// read. Day-first layouts are tried before anything else ambiguous.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
