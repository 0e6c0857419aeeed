package schema

import (
	"fmt"

	"github.com/shopspring/decimal"

	"heart-risk-dashboard/internal/common/validation"
)

// PayloadJSONSchema describes the outbound prediction request,
// {"features": {...}}, as a JSON Schema document.
func (s *Schema) PayloadJSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		properties[f.Key] = fieldJSONSchema(f)
	}

	return map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                "PredictionRequest",
		"type":                 "object",
		"required":             []interface{}{"features"},
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"features": map[string]interface{}{
				"type":                 "object",
				"required":             toInterfaces(s.Keys()),
				"additionalProperties": false,
				"properties":           properties,
			},
		},
	}
}

func fieldJSONSchema(f Field) map[string]interface{} {
	if f.Kind == KindCategorical {
		codes := make([]interface{}, len(f.Options))
		labels := make([]interface{}, len(f.Options))
		for i, o := range f.Options {
			codes[i] = o.Code
			labels[i] = o.Label
		}
		return map[string]interface{}{
			"title":    f.Label,
			"type":     "integer",
			"enum":     codes,
			"default":  int(f.Default),
			"x-labels": labels,
		}
	}

	out := map[string]interface{}{
		"title":   f.Label,
		"type":    "number",
		"minimum": f.Min,
		"maximum": f.Max,
		"default": f.Default,
	}
	// multipleOf counts from zero, so it only matches the control's grid
	// when min itself sits on that grid.
	if decimal.NewFromFloat(f.Min).Mod(decimal.NewFromFloat(f.Step)).IsZero() {
		out["multipleOf"] = f.Step
	}
	return out
}

// ValidatePayload checks a features map against PayloadJSONSchema. The
// compiled validator is built on first use and reused.
func (s *Schema) ValidatePayload(features Values) error {
	s.payloadOnce.Do(func() {
		s.payloadValidator, s.payloadErr = validation.Compile(s.PayloadJSONSchema())
	})
	if s.payloadErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, s.payloadErr)
	}

	result, err := s.payloadValidator.Validate(map[string]interface{}{"features": map[string]float64(features)})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidValue, result.Error())
	}
	return nil
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
