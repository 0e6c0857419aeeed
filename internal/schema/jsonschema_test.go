package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadJSONSchema_Shape(t *testing.T) {
	doc := Default().PayloadJSONSchema()

	props := doc["properties"].(map[string]interface{})
	features := props["features"].(map[string]interface{})
	assert.Len(t, features["required"], 6)

	fieldProps := features["properties"].(map[string]interface{})
	oldpeak := fieldProps["oldpeak"].(map[string]interface{})
	assert.Equal(t, "number", oldpeak["type"])
	assert.Equal(t, 0.1, oldpeak["multipleOf"])

	age := fieldProps["age"].(map[string]interface{})
	assert.Equal(t, 8.0, age["minimum"])

	slope := fieldProps["slope"].(map[string]interface{})
	assert.Equal(t, "integer", slope["type"])
	assert.Equal(t, []interface{}{0, 1, 2}, slope["enum"])
}

func TestValidatePayload(t *testing.T) {
	s := Default()

	require.NoError(t, s.ValidatePayload(s.Defaults()))
	require.NoError(t, s.ValidatePayload(s.Defaults().With("oldpeak", 2.3)))

	tests := []struct {
		name   string
		values Values
	}{
		{"age too high", s.Defaults().With("age", 107)},
		{"unknown slope", s.Defaults().With("slope", 5)},
		{"fractional slope", s.Defaults().With("slope", 1.5)},
		{"unknown key", s.Defaults().With("chest_pain", 2)},
		{"oldpeak off grid", s.Defaults().With("oldpeak", 2.35)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.ValidatePayload(tt.values), ErrInvalidValue)
		})
	}

	missing := s.Defaults()
	delete(missing, "bp")
	assert.ErrorIs(t, s.ValidatePayload(missing), ErrInvalidValue)
}
