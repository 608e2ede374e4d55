package widget

import (
	"context"
	"strings"
	"time"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
)

// Date converts raw strings to time.Time date values
type Date struct {
	// Layout is the render layout and primary parse layout
	// (default "2006-01-02")
	Layout string
	// Fallbacks are extra layouts tried when the primary parse fails
	Fallbacks []string
}

func (w *Date) layout() string {
	if w.Layout == "" {
		return "2006-01-02"
	}
	return w.Layout
}

// Clean parses the raw value with the configured layouts
func (w *Date) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(raw)
	layouts := append([]string{w.layout()}, w.Fallbacks...)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeConversion,
		"value %q is not a valid date (expected layout %s)", raw, w.layout())
}

// Render formats the native time with the configured layout
func (w *Date) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.Format(w.layout()), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as date", native)
	}
}

// DateTime converts raw strings to time.Time values with a time component
type DateTime struct {
	// Layout is the render layout and primary parse layout
	// (default RFC 3339)
	Layout string
	// Fallbacks are extra layouts tried when the primary parse fails
	Fallbacks []string
}

func (w *DateTime) layout() string {
	if w.Layout == "" {
		return time.RFC3339
	}
	return w.Layout
}

// Clean parses the raw value with the configured layouts, falling back to
// common spellings like "2006-01-02 15:04:05"
func (w *DateTime) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(raw)
	layouts := append([]string{w.layout()}, w.Fallbacks...)
	layouts = append(layouts, "2006-01-02 15:04:05", "2006-01-02")
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeConversion,
		"value %q is not a valid datetime (expected layout %s)", raw, w.layout())
}

// Render formats the native time with the configured layout
func (w *DateTime) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.Format(w.layout()), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as datetime", native)
	}
}

// TimeOfDay converts raw strings to clock time values
type TimeOfDay struct {
	// Layout is the render and parse layout (default "15:04:05")
	Layout string
}

func (w *TimeOfDay) layout() string {
	if w.Layout == "" {
		return "15:04:05"
	}
	return w.Layout
}

// Clean parses the raw value as a clock time
func (w *TimeOfDay) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	t, err := time.Parse(w.layout(), strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeConversion,
			"value %q is not a valid time (expected layout %s)", raw, w.layout())
	}
	return t, nil
}

// Render formats the native time with the configured layout
func (w *TimeOfDay) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.Format(w.layout()), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as time", native)
	}
}

// Duration converts raw strings to time.Duration values
type Duration struct{}

// Clean parses the raw value with time.ParseDuration
func (w *Duration) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeConversion,
			"value %q is not a valid duration", raw)
	}
	return d, nil
}

// Render formats the native duration with time.Duration.String
func (w *Duration) Render(native interface{}) (string, error) {
	switch v := native.(type) {
	case nil:
		return "", nil
	case time.Duration:
		return v.String(), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConversion,
			"cannot render %T as duration", native)
	}
}
