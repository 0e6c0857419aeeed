package schema

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_FieldsAndDefaults(t *testing.T) {
	s := Default()

	assert.Equal(t, []string{"age", "bp", "cholesterol", "max_hr", "oldpeak", "slope"}, s.Keys())
	assert.Equal(t, Values{
		"age":         55,
		"bp":          120,
		"cholesterol": 240,
		"max_hr":      150,
		"oldpeak":     1.0,
		"slope":       1,
	}, s.Defaults())
	assert.NoError(t, s.Conforms(s.Defaults()))

	slope, ok := s.Field("slope")
	require.True(t, ok)
	assert.True(t, slope.IsCategorical())
	assert.Equal(t, "Flat", slope.Format(1))
	assert.Equal(t, "Downsloping", slope.Format(2))

	_, ok = s.Field("chest_pain")
	assert.False(t, ok)
}

func TestDefaults_ReturnsIndependentMaps(t *testing.T) {
	s := Default()
	a := s.Defaults()
	a["age"] = 99
	assert.Equal(t, 55.0, s.Defaults()["age"])
}

func TestField_Parse(t *testing.T) {
	s := Default()
	field := func(key string) Field {
		f, ok := s.Field(key)
		require.True(t, ok)
		return f
	}

	tests := []struct {
		name    string
		key     string
		raw     string
		want    float64
		wantErr bool
	}{
		{"age in range", "age", "63", 63, false},
		{"age with spaces", "age", " 70 ", 70, false},
		{"age at min", "age", "8", 8, false},
		{"age at max", "age", "106", 106, false},
		{"age below min", "age", "7", 0, true},
		{"age off step", "age", "40.5", 0, true},
		{"age not a number", "age", "old", 0, true},
		{"empty", "bp", "", 0, true},
		{"oldpeak tenth step", "oldpeak", "2.3", 2.3, false},
		{"oldpeak at max", "oldpeak", "6.5", 6.5, false},
		{"oldpeak off step", "oldpeak", "2.35", 0, true},
		{"oldpeak above max", "oldpeak", "6.6", 0, true},
		{"oldpeak NaN", "oldpeak", "NaN", 0, true},
		{"slope option", "slope", "2", 2, false},
		{"slope unknown option", "slope", "3", 0, true},
		{"slope label is not a code", "slope", "Flat", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := field(tt.key).Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidValue))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestField_CheckRejectsNonFinite(t *testing.T) {
	age, _ := Default().Field("age")
	assert.ErrorIs(t, age.Check(math.Inf(1)), ErrInvalidValue)
	assert.ErrorIs(t, age.Check(math.NaN()), ErrInvalidValue)
}

func TestField_FormatRoundTrip(t *testing.T) {
	s := Default()
	values := Values{"age": 63, "bp": 145, "cholesterol": 233, "max_hr": 150, "oldpeak": 2.3, "slope": 0}

	for _, f := range s.Fields() {
		if !f.IsContinuous() {
			continue
		}
		got, err := f.Parse(f.Format(values[f.Key]))
		require.NoError(t, err, f.Key)
		assert.Equal(t, values[f.Key], got, f.Key)
	}
}

func TestNew_RejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{"no fields", nil},
		{"missing key", []Field{{Kind: KindContinuous, Min: 0, Max: 1, Step: 1}}},
		{"duplicate key", []Field{
			{Key: "a", Kind: KindContinuous, Min: 0, Max: 1, Step: 1},
			{Key: "a", Kind: KindContinuous, Min: 0, Max: 1, Step: 1},
		}},
		{"min above max", []Field{{Key: "a", Kind: KindContinuous, Min: 2, Max: 1, Step: 1, Default: 2}}},
		{"zero step", []Field{{Key: "a", Kind: KindContinuous, Min: 0, Max: 1}}},
		{"default out of range", []Field{{Key: "a", Kind: KindContinuous, Min: 0, Max: 1, Step: 1, Default: 5}}},
		{"no options", []Field{{Key: "c", Kind: KindCategorical}}},
		{"duplicate option", []Field{{Key: "c", Kind: KindCategorical, Options: []Option{{"x", 0}, {"y", 0}}}}},
		{"default not an option", []Field{{Key: "c", Kind: KindCategorical, Options: []Option{{"x", 0}}, Default: 4}}},
		{"unknown kind", []Field{{Key: "a", Kind: "text"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fields...)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestConforms(t *testing.T) {
	s := Default()

	v := s.Defaults()
	assert.NoError(t, s.Conforms(v))

	assert.ErrorIs(t, s.Conforms(v.With("age", 500)), ErrInvalidValue)

	missing := v.Clone()
	delete(missing, "slope")
	assert.ErrorIs(t, s.Conforms(missing), ErrInvalidValue)

	extra := v.With("chest_pain", 1)
	assert.ErrorIs(t, s.Conforms(extra), ErrInvalidValue)
}

func TestValues_WithDoesNotMutate(t *testing.T) {
	v := Values{"age": 55}
	w := v.With("age", 70)
	assert.Equal(t, 55.0, v["age"])
	assert.Equal(t, 70.0, w["age"])
}

func TestParse_YAML(t *testing.T) {
	s, err := Parse([]byte(`
fields:
  - key: age
    label: Age
    type: range
    min: 20
    max: 90
    step: 1
    default: 40
  - key: oldpeak
    type: continuous
    min: 0
    max: 4
    step: 0.5
  - key: slope
    label: ST Slope
    type: dropdown
    options:
      - {label: Up, value: 0}
      - {label: Down, value: 2}
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "oldpeak", "slope"}, s.Keys())
	assert.Equal(t, Values{"age": 40, "oldpeak": 0, "slope": 0}, s.Defaults())

	oldpeak, _ := s.Field("oldpeak")
	assert.Equal(t, "oldpeak", oldpeak.Label)
	_, err = oldpeak.Parse("1.25")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestParse_YAMLErrors(t *testing.T) {
	_, err := Parse([]byte("fields:\n  - key: a\n    type: text\n"))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = Parse([]byte("fields: [\n"))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = Parse([]byte("fields: []\n"))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestLoadFile(t *testing.T) {
	s, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default().Keys(), s.Keys())

	path := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  - {key: x, type: range, min: 0, max: 10, step: 2, default: 4}\n"), 0o600))
	s, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Values{"x": 4}, s.Defaults())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_ShippedForm(t *testing.T) {
	s, err := LoadFile(filepath.Join("..", "..", "configs", "form.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Fields(), s.Fields())
}
