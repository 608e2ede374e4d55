package widget

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
)

// Int converts raw strings to int64 values
type Int struct{}

// Clean parses the raw value as a base-10 integer
func (w *Int) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeConversion,
			"value %q is not a valid integer", raw)
	}
	return v, nil
}

// Render formats the native value as a base-10 integer
func (w *Int) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as integer", native)
	}
}

// Float converts raw strings to float64 values
type Float struct{}

// Clean parses the raw value as a floating point number
func (w *Float) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeConversion,
			"value %q is not a valid number", raw)
	}
	return v, nil
}

// Render formats the native value with the shortest exact representation
func (w *Float) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as number", native)
	}
}

// Decimal converts raw strings to exact decimal values; use it for money
// columns where float rounding is unacceptable.
type Decimal struct{}

// Clean parses the raw value as an arbitrary-precision decimal
func (w *Decimal) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeConversion,
			"value %q is not a valid decimal", raw)
	}
	return v, nil
}

// Render formats the native decimal without trailing zeros
func (w *Decimal) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case decimal.Decimal:
		return v.String(), nil
	case string:
		// stores may hand numeric columns back as text
		if _, err := decimal.NewFromString(v); err != nil {
			return "", errors.Newf(errors.ErrorTypeConversion,
				"cannot render %q as decimal", v)
		}
		return v, nil
	case float64:
		return decimal.NewFromFloat(v).String(), nil
	case int64:
		return decimal.NewFromInt(v).String(), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as decimal", native)
	}
}

// Bool converts raw strings to bool values. Accepted true spellings:
// true/1/yes/y; false spellings: false/0/no/n (case-insensitive).
type Bool struct{}

var (
	trueValues  = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "y": {}}
	falseValues = map[string]struct{}{"false": {}, "0": {}, "no": {}, "n": {}}
)

// Clean parses the raw value as a boolean
func (w *Bool) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := trueValues[lowered]; ok {
		return true, nil
	}
	if _, ok := falseValues[lowered]; ok {
		return false, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConversion,
		"value %q is not a valid boolean", raw)
}

// Render formats the native value as "true" or "false"
func (w *Bool) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as boolean", native)
	}
}
