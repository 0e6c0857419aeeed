// Package schema describes the form's input fields: which fields exist, the
// constraints on their values and their defaults. A Schema is immutable once
// built.
package schema

import (
	"errors"
	"fmt"
	"sync"

	"heart-risk-dashboard/internal/common/validation"
)

var (
	ErrUnknownField  = errors.New("UNKNOWN_FIELD")
	ErrInvalidValue  = errors.New("INVALID_FIELD_VALUE")
	ErrInvalidSchema = errors.New("SCHEMA_INVALID")
)

// Kind is the descriptor variant of a field.
type Kind string

const (
	KindContinuous  Kind = "continuous"
	KindCategorical Kind = "categorical"
)

// Option is one labelled code of a categorical field.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Code  int    `json:"value" yaml:"value"`
}

// Field describes one input. Min, Max and Step apply to continuous fields,
// Options to categorical ones. Default is a value for either kind; for
// categorical fields it holds the option code.
type Field struct {
	Key     string
	Label   string
	Kind    Kind
	Min     float64
	Max     float64
	Step    float64
	Options []Option
	Default float64
}

// Values maps field keys to their current value. Categorical codes are stored
// as their numeric value.
type Values map[string]float64

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// With returns a copy of v with key set to value; v itself is not modified.
func (v Values) With(key string, value float64) Values {
	out := v.Clone()
	out[key] = value
	return out
}

// Schema is an ordered set of field descriptors.
type Schema struct {
	fields []Field
	index  map[string]int

	payloadOnce      sync.Once
	payloadValidator *validation.Validator
	payloadErr       error
}

// New builds a Schema, rejecting definitions whose defaults violate their own
// constraints.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("%w: field without key", ErrInvalidSchema)
		}
		if _, dup := s.index[f.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Key)
		}
		if err := f.validateDefinition(); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidSchema, f.Key, err)
		}
		f.Options = append([]Option(nil), f.Options...)
		s.index[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is New for schemas defined in code.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the descriptors in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a descriptor by key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Keys returns field keys in declaration order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

func (s *Schema) Len() int { return len(s.fields) }

// Defaults builds a fully populated Values from every field's default.
func (s *Schema) Defaults() Values {
	out := make(Values, len(s.fields))
	for _, f := range s.fields {
		out[f.Key] = f.Default
	}
	return out
}

// Conforms reports whether v has exactly the schema's keys and every value
// satisfies its field.
func (s *Schema) Conforms(v Values) error {
	if len(v) != len(s.fields) {
		return fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidValue, len(s.fields), len(v))
	}
	for _, f := range s.fields {
		val, ok := v[f.Key]
		if !ok {
			return fmt.Errorf("%w: missing field %q", ErrInvalidValue, f.Key)
		}
		if err := f.Check(val); err != nil {
			return err
		}
	}
	return nil
}
