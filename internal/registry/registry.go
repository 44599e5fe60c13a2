// Package registry loads the catalogue of known utility companies and the
// query modalities each of them accepts for a debt lookup.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DataType is the declared type of an identifier value.
type DataType string

const (
	DataTypeNumeric      DataType = "NUM"
	DataTypeAlphanumeric DataType = "ALF"
	DataTypeAmount       DataType = "IMP"
	DataTypeBarcode      DataType = "CBA"
)

// Document is the top-level registry file.
type Document struct {
	Services []CompanyRecord `json:"services"`
}

// CompanyRecord describes one company that can be queried for debts.
type CompanyRecord struct {
	CompanyCode string     `json:"companyCode"`
	CompanyName string     `json:"companyName"`
	CompanyType string     `json:"companyType"`
	Tags        []string   `json:"tags"`
	Modalities  []Modality `json:"modalities"`
}

// HasTag reports whether the record carries the tag, case-insensitively.
func (c CompanyRecord) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Modality is one way of querying a company for a debt.
type Modality struct {
	ModalityID    string    `json:"modalityId"`
	ModalityType  string    `json:"modalityType"`
	ModalityTitle string    `json:"modalityTitle"`
	Active        *bool     `json:"active,omitempty"`
	QueryData     QueryData `json:"queryData"`
}

// UnmarshalJSON reads active by truthiness: false, null, 0, "" and empty
// arrays or objects are inactive, anything else is active.
func (m *Modality) UnmarshalJSON(data []byte) error {
	type plain Modality
	var raw struct {
		plain
		Active json.RawMessage `json:"active"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Active) > 0 {
		active, err := truthy(raw.Active)
		if err != nil {
			return fmt.Errorf("modality %s: active: %w", raw.ModalityID, err)
		}
		raw.plain.Active = &active
	}
	*m = Modality(raw.plain)
	return nil
}

func truthy(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		return t != "", nil
	case []any:
		return len(t) > 0, nil
	case map[string]any:
		return len(t) > 0, nil
	}
	return true, nil
}

// IsActive reports the active flag, which defaults to true when absent.
func (m Modality) IsActive() bool {
	return m.Active == nil || *m.Active
}

// IdentifierSpec describes a value a modality needs for a query.
type IdentifierSpec struct {
	IdentifierName string   `json:"identifierName"`
	Description    string   `json:"description"`
	MinLength      Length   `json:"minLength"`
	MaxLength      Length   `json:"maxLength"`
	DataType       DataType `json:"dataType"`
	HelpText       string   `json:"helpText,omitempty"`
}

// Complete reports whether the spec has both a name and a description.
func (s IdentifierSpec) Complete() bool {
	return s.IdentifierName != "" && s.Description != ""
}

// Length is a character count. Registry files write it as a number, a
// numeric string, an empty string or null; anything unparseable is zero.
type Length int

func (l *Length) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = 0
		return nil
	}

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*l = 0
		return nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		*l = 0
		return nil
	}
	*l = Length(int(f))
	return nil
}

// QueryForm tells which of the two accepted queryData shapes was read.
type QueryForm int

const (
	// FormNone means queryData was absent or of an unknown shape.
	FormNone QueryForm = iota
	// FormList is a bare array of identifier objects.
	FormList
	// FormMapping is an object holding the array under "identifiers",
	// where each entry names itself with "name".
	FormMapping
)

func (f QueryForm) String() string {
	switch f {
	case FormList:
		return "list"
	case FormMapping:
		return "mapping"
	default:
		return "none"
	}
}

// QueryData is the decoded queryData of a modality. Items holds every
// object entry of either shape in declared order with the name field
// already mapped onto IdentifierName, including incomplete entries.
type QueryData struct {
	Form  QueryForm
	Items []IdentifierSpec
}

type mappingEntry struct {
	IdentifierSpec
	Name string `json:"name"`
}

func (q *QueryData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*q = QueryData{}
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode queryData list: %w", err)
		}
		q.Form = FormList
		for _, item := range raw {
			if !isObject(item) {
				continue
			}
			var spec IdentifierSpec
			if err := json.Unmarshal(item, &spec); err != nil {
				return fmt.Errorf("decode queryData item: %w", err)
			}
			q.Items = append(q.Items, spec)
		}
	case '{':
		var wrapper struct {
			Identifiers json.RawMessage `json:"identifiers"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return fmt.Errorf("decode queryData mapping: %w", err)
		}
		q.Form = FormMapping
		var raw []json.RawMessage
		if len(wrapper.Identifiers) == 0 || json.Unmarshal(wrapper.Identifiers, &raw) != nil {
			return nil
		}
		for _, item := range raw {
			if !isObject(item) {
				continue
			}
			var entry mappingEntry
			if err := json.Unmarshal(item, &entry); err != nil {
				return fmt.Errorf("decode queryData identifier: %w", err)
			}
			spec := entry.IdentifierSpec
			spec.IdentifierName = entry.Name
			q.Items = append(q.Items, spec)
		}
	}
	return nil
}

func (q QueryData) MarshalJSON() ([]byte, error) {
	items := q.Items
	if items == nil {
		items = []IdentifierSpec{}
	}
	if q.Form != FormMapping {
		return json.Marshal(items)
	}

	entries := make([]map[string]any, 0, len(items))
	for _, it := range items {
		entries = append(entries, map[string]any{
			"name":        it.IdentifierName,
			"description": it.Description,
			"minLength":   int(it.MinLength),
			"maxLength":   int(it.MaxLength),
			"dataType":    it.DataType,
			"helpText":    it.HelpText,
		})
	}
	return json.Marshal(map[string]any{"identifiers": entries})
}

// Descriptions lists the non-empty item descriptions in declared order.
func (q QueryData) Descriptions() []string {
	out := []string{}
	for _, it := range q.Items {
		if it.Description != "" {
			out = append(out, it.Description)
		}
	}
	return out
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
