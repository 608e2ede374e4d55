package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeConversion, "bad value")
	assert.Equal(t, "conversion: bad value", err.Error())
	assert.NotEmpty(t, err.Stack)
	assert.True(t, IsType(err, ErrorTypeConversion))
	assert.False(t, IsType(err, ErrorTypeStore))
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, ErrorTypeStore, "save failed")
	assert.Equal(t, "store: save failed: disk full", err.Error())
	assert.Equal(t, cause, err.Unwrap())

	t.Run("wrapping nil returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeStore, "x"))
	})

	t.Run("rewrap preserves the original stack", func(t *testing.T) {
		inner := New(ErrorTypeConversion, "inner")
		outer := Wrap(inner, ErrorTypeStore, "outer")
		assert.Equal(t, inner.Stack, outer.Stack)
		assert.True(t, IsType(outer, ErrorTypeStore))
	})
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeConversion, "bad value").
		WithDetail("column", "price").
		WithDetail("row", 3)
	assert.Equal(t, "price", err.Details["column"])
	assert.Equal(t, 3, err.Details["row"])
}

func TestValidationError(t *testing.T) {
	v := NewValidationError()
	assert.True(t, v.Empty())

	v.Add("name", "must not be blank")
	v.Add("price", "must be positive")
	v.Add("name", "too long")
	v.Add("", "record is inconsistent")
	assert.False(t, v.Empty())

	t.Run("error text is deterministic", func(t *testing.T) {
		want := "validation: name: must not be blank; too long, price: must be positive, record is inconsistent"
		assert.Equal(t, want, v.Error())
	})

	t.Run("extractable from a wrapped chain", func(t *testing.T) {
		wrapped := Wrap(v, ErrorTypeValidation, "instance rejected")
		got, ok := AsValidation(wrapped)
		require.True(t, ok)
		assert.Equal(t, v, got)
	})

	t.Run("plain errors do not extract", func(t *testing.T) {
		_, ok := AsValidation(fmt.Errorf("boom"))
		assert.False(t, ok)
	})
}
