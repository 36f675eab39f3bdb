package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/okian/facepace/internal/domain/model"
)

const schemaURL = "https://facepace.local/schemas/analysis-report.schema.json"

// reportSchema accepts the full report and the plain {age} variant. Scalars
// may be numbers or strings.
const reportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [
    {"required": ["pace_of_aging"]},
    {"required": ["functional_age"]},
    {"required": ["age"]}
  ],
  "properties": {
    "pace_of_aging": {"$ref": "#/$defs/scalar"},
    "functional_age": {"$ref": "#/$defs/scalar"},
    "age": {"$ref": "#/$defs/scalar"},
    "biological_age_difference": {"type": ["string", "null"]},
    "hr": {"$ref": "#/$defs/scalar"},
    "sdnn": {"$ref": "#/$defs/scalar"},
    "rmssd": {"$ref": "#/$defs/scalar"},
    "pnn50": {"$ref": "#/$defs/scalar"},
    "nn50": {"$ref": "#/$defs/scalar"},
    "acne": {"$ref": "#/$defs/subscore"},
    "eye_bags": {"$ref": "#/$defs/subscore"},
    "brain_health": {"$ref": "#/$defs/subscore"}
  },
  "$defs": {
    "scalar": {"type": ["number", "string", "null"]},
    "subscore": {
      "type": ["object", "null"],
      "properties": {
        "description": {"type": "string"},
        "score": {"$ref": "#/$defs/scalar"}
      }
    }
  }
}`

// Validator checks report bodies against the report schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the report schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(reportSchema)); err != nil {
		return nil, fmt.Errorf("report schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("report schema compile failed: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Parse validates raw and decodes it. The report may be bare or wrapped in a
// "result" object.
func (v *Validator) Parse(raw []byte) (*model.AnalysisReport, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAnalysisMalformed, err)
	}

	body := raw
	if obj, ok := doc.(map[string]any); ok {
		if inner, ok := obj["result"].(map[string]any); ok {
			doc = inner
			wrapped, err := json.Marshal(inner)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", model.ErrAnalysisMalformed, err)
			}
			body = wrapped
		}
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAnalysisMalformed, err)
	}

	var report model.AnalysisReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAnalysisMalformed, err)
	}
	report.Raw = append(json.RawMessage(nil), raw...)
	return &report, nil
}
