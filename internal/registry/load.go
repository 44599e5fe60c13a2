package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalidRegistry is returned when a registry document does not match
// the expected shape.
var ErrInvalidRegistry = errors.New("invalid registry document")

var compiledSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("registry.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add registry schema: %v", err))
	}
	compiledSchema = compiler.MustCompile("registry.json")
}

// Load reads and validates the registry file at path. Files ending in
// .yaml or .yml are read as YAML, anything else as JSON.
func Load(path string) ([]CompanyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	}

	return Parse(data)
}

// Parse validates and decodes a JSON registry document.
func Parse(data []byte) ([]CompanyRecord, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	return doc.Services, nil
}

// Validate checks a JSON registry document against the embedded schema.
func Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	return out, nil
}
