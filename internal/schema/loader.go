package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type document struct {
	Fields []fieldDocument `yaml:"fields"`
}

type fieldDocument struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Type    string   `yaml:"type"`
	Min     float64  `yaml:"min"`
	Max     float64  `yaml:"max"`
	Step    float64  `yaml:"step"`
	Options []Option `yaml:"options"`
	Default *float64 `yaml:"default"`
}

// LoadFile reads a YAML form definition. An empty path yields Default().
func LoadFile(path string) (*Schema, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML form definition.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	fields := make([]Field, 0, len(doc.Fields))
	for i, fd := range doc.Fields {
		kind, err := parseKind(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: fields[%d]: %v", ErrInvalidSchema, i, err)
		}
		f := Field{
			Key:     strings.TrimSpace(fd.Key),
			Label:   fd.Label,
			Kind:    kind,
			Min:     fd.Min,
			Max:     fd.Max,
			Step:    fd.Step,
			Options: fd.Options,
		}
		if f.Label == "" {
			f.Label = f.Key
		}
		switch {
		case fd.Default != nil:
			f.Default = *fd.Default
		case kind == KindCategorical && len(fd.Options) > 0:
			f.Default = float64(fd.Options[0].Code)
		default:
			f.Default = fd.Min
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

// "range" and "dropdown" name the control rather than the kind; both
// spellings are accepted.
func parseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuous", "range", "slider", "number":
		return KindContinuous, nil
	case "categorical", "dropdown", "select":
		return KindCategorical, nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}
