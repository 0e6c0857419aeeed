package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func (f Field) IsContinuous() bool  { return f.Kind == KindContinuous }
func (f Field) IsCategorical() bool { return f.Kind == KindCategorical }

// OptionFor returns the option whose code equals code.
func (f Field) OptionFor(code int) (Option, bool) {
	for _, o := range f.Options {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}

// Parse converts a raw control value to the field's numeric representation
// and checks it against the field's constraints.
func (f Field) Parse(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s: empty value", ErrInvalidValue, f.Key)
	}

	var v float64
	switch f.Kind {
	case KindCategorical:
		code, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %q is not an option code", ErrInvalidValue, f.Key, raw)
		}
		v = float64(code)
	default:
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidValue, f.Key, raw)
		}
		v = parsed
	}

	if err := f.Check(v); err != nil {
		return 0, err
	}
	return v, nil
}

// Check reports whether v is a value the field's control could produce.
func (f Field) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s: not a finite number", ErrInvalidValue, f.Key)
	}

	switch f.Kind {
	case KindCategorical:
		if v != math.Trunc(v) {
			return fmt.Errorf("%w: %s: %v is not an option code", ErrInvalidValue, f.Key, v)
		}
		if _, ok := f.OptionFor(int(v)); !ok {
			return fmt.Errorf("%w: %s: unknown option %v", ErrInvalidValue, f.Key, v)
		}
		return nil
	default:
		if v < f.Min || v > f.Max {
			return fmt.Errorf("%w: %s: %v outside [%v, %v]", ErrInvalidValue, f.Key, v, f.Min, f.Max)
		}
		if !onStep(v, f.Min, f.Step) {
			return fmt.Errorf("%w: %s: %v is not a multiple of %v from %v", ErrInvalidValue, f.Key, v, f.Step, f.Min)
		}
		return nil
	}
}

// Format renders v the way the field displays it: the number for continuous
// fields, the option label for categorical ones.
func (f Field) Format(v float64) string {
	if f.Kind == KindCategorical {
		if o, ok := f.OptionFor(int(v)); ok {
			return o.Label
		}
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Decimal arithmetic keeps 0.1-sized steps exact.
func onStep(v, min, step float64) bool {
	offset := decimal.NewFromFloat(v).Sub(decimal.NewFromFloat(min))
	return offset.Mod(decimal.NewFromFloat(step)).IsZero()
}

func (f Field) validateDefinition() error {
	switch f.Kind {
	case KindContinuous:
		if f.Step <= 0 {
			return errors.New("step must be positive")
		}
		if f.Min > f.Max {
			return errors.New("min exceeds max")
		}
		if len(f.Options) > 0 {
			return errors.New("continuous field cannot carry options")
		}
	case KindCategorical:
		if len(f.Options) == 0 {
			return errors.New("categorical field needs options")
		}
		seen := make(map[int]bool, len(f.Options))
		for _, o := range f.Options {
			if seen[o.Code] {
				return fmt.Errorf("duplicate option code %d", o.Code)
			}
			seen[o.Code] = true
		}
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}

	if err := f.Check(f.Default); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	return nil
}
