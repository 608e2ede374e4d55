// Package widget provides bidirectional cell value converters.
//
// A widget converts between the raw string form of a dataset cell and a
// native attribute value. Clean parses raw input and fails with a
// conversion error on malformed values; Render produces the raw form of a
// native value. For well-formed canonical input, Render(Clean(x))
// round-trips to x.
package widget

import (
	"context"
	"fmt"

	"github.com/rowforge/rowforge/pkg/dataset"
)

// Widget converts between raw cell values and native attribute values.
// Implementations are stateless and safe for concurrent use.
type Widget interface {
	// Clean parses a raw cell value into a native value. The row supplies
	// cross-column context; most widgets ignore it. A nil return with nil
	// error means "no value".
	Clean(ctx context.Context, raw string, row *dataset.Row) (interface{}, error)
	// Render produces the raw representation of a native value
	Render(native interface{}) (string, error)
}

// nullValues are raw cell contents meaning "no value"
var nullValues = map[string]struct{}{
	"":     {},
	"NULL": {},
	"null": {},
	"None": {},
}

// IsNull reports whether a raw cell carries no value
func IsNull(raw string) bool {
	_, ok := nullValues[raw]
	return ok
}

// String converts raw strings to native strings. The zero value is ready
// to use.
type String struct {
	// BlankIsNil cleans empty cells to nil instead of ""
	BlankIsNil bool
}

// Clean returns the raw value unchanged, or nil for null sentinels when
// BlankIsNil is set
func (w *String) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if w.BlankIsNil && IsNull(raw) {
		return nil, nil
	}
	return raw, nil
}

// Render stringifies the native value; nil renders as ""
func (w *String) Render(native interface{}) (string, error) {
	if native == nil {
		return "", nil
	}
	if s, ok := native.(string); ok {
		return s, nil
	}
	return fmt.Sprint(native), nil
}
