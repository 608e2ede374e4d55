package widget

import (
	"context"

	gojson "github.com/goccy/go-json"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
)

// JSON converts raw strings holding JSON documents to their decoded form
type JSON struct{}

// Clean decodes the raw value as a JSON document
func (w *JSON) Clean(_ context.Context, raw string, _ *dataset.Row) (interface{}, error) {
	if IsNull(raw) {
		return nil, nil
	}
	var v interface{}
	if err := gojson.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.Newf(errors.ErrorTypeConversion,
			"value %q is not valid JSON: %v", raw, err)
	}
	return v, nil
}

// Render encodes the native value as compact JSON
func (w *JSON) Render(native interface{}) (string, error) {
	if native == nil {
		return "", nil
	}
	data, err := gojson.Marshal(native)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConversion, "cannot render value as JSON")
	}
	return string(data), nil
}
