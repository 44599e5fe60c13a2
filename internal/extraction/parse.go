package extraction

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"
)

// ErrUnparseable is returned by a Strategy that cannot read a response.
var ErrUnparseable = errors.New("response could not be parsed")

// Strategy turns a model response into fields.
type Strategy interface {
	Name() string
	Parse(raw string) (map[string]any, error)
}

// Parser tries its strategies in order and keeps the first success.
type Parser struct {
	strategies []Strategy
}

// NewParser returns a Parser over strategies.
func NewParser(strategies ...Strategy) *Parser {
	return &Parser{strategies: strategies}
}

// Parsed is a parsed response and the strategy that produced it.
type Parsed struct {
	Fields   map[string]any
	Strategy string
}

// Parse returns ErrUnparseable when every strategy fails.
func (p *Parser) Parse(raw string) (Parsed, error) {
	for _, s := range p.strategies {
		fields, err := s.Parse(raw)
		if err == nil {
			return Parsed{Fields: fields, Strategy: s.Name()}, nil
		}
	}
	return Parsed{}, ErrUnparseable
}

// FencedJSON decodes a JSON object, optionally wrapped in a ``` fence.
type FencedJSON struct{}

func (FencedJSON) Name() string { return "fenced_json" }

func (FencedJSON) Parse(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return decodeObject(strings.TrimSpace(text))
}

// EmbeddedJSON decodes the first JSON object found in the text and ignores
// whatever follows it, which tolerates prose around the object.
type EmbeddedJSON struct{}

func (EmbeddedJSON) Name() string { return "embedded_json" }

func (EmbeddedJSON) Parse(raw string) (map[string]any, error) {
	for start := strings.Index(raw, "{"); start != -1; {
		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		dec.UseNumber()

		var fields map[string]any
		if err := dec.Decode(&fields); err == nil && fields != nil {
			return fields, nil
		}

		next := strings.Index(raw[start+1:], "{")
		if next == -1 {
			break
		}
		start += next + 1
	}
	return nil, ErrUnparseable
}

func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, ErrUnparseable
	}
	// Trailing content means the text was more than one object.
	if dec.More() {
		return nil, ErrUnparseable
	}
	return fields, nil
}

var (
	amountKeys   = []string{"valor de la factura", "valor_factura", "monto"}
	dueDateKeys  = []string{"fecha de vencimiento", "fecha_vencimiento"}
	customerKeys = []string{"nombre del cliente", "nombre_cliente"}
)

// LineFallback reads "Label: value" lines. General field labels are
// mapped onto their JSON keys and identifier labels onto the identifier
// description, both case-insensitively.
type LineFallback struct {
	Descriptions []string
}

func (LineFallback) Name() string { return "lines" }

func (l LineFallback) Parse(raw string) (map[string]any, error) {
	fields := map[string]any{}
	sawPair := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		sawPair = true

		key = strings.ToLower(cleanKey(key))
		value = cleanValue(value)

		switch {
		case contains(amountKeys, key):
			fields[FieldAmount] = stripNonAmount(value)
		case contains(dueDateKeys, key):
			fields[FieldDueDate] = value
		case contains(customerKeys, key):
			fields[FieldCustomer] = value
		default:
			for _, desc := range l.Descriptions {
				if key == strings.ToLower(desc) {
					fields[desc] = value
					break
				}
			}
		}
	}

	if !sawPair {
		return nil, ErrUnparseable
	}
	return fields, nil
}

func cleanKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimLeft(key, "-*• ")
	return strings.Trim(strings.TrimSpace(key), `"'`)
}

func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimSuffix(value, ",")
	return strings.Trim(strings.TrimSpace(value), `"'`)
}

func stripNonAmount(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			return r
		}
		return -1
	}, value)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
