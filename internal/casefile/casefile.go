// Package casefile reads case bundles from JSON or YAML files. A bundle has the shape of a
// stored case: case_details, diagnostic_framework and feature_likelihood_ratios, plus the
// optional case_id, title and primary_diagnosis.
package casefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medcase-generator/internal/domain"
)

// Format is the encoding of a case bundle.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from the file extension, then from the content.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and validates the case bundle at path.
func Load(path string) (*domain.Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %w", err)
	}
	c, err := Decode(data, DetectFormat(path, data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses a case bundle. YAML is normalized to JSON first so both formats share the
// JSON field names of domain.Case.
func Decode(data []byte, format Format) (*domain.Case, error) {
	if format == FormatYAML {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if doc == nil {
			return nil, fmt.Errorf("case file is empty")
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("converting YAML: %w", err)
		}
		data = converted
	}

	var c domain.Case
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing case: %w", err)
	}

	if err := c.Framework.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateLikelihoodRatios(c.LikelihoodRatios); err != nil {
		return nil, err
	}
	return &c, nil
}
