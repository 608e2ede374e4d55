package widget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/store"
)

// mapResolver resolves identifiers from a fixed table
func mapResolver(table map[string]interface{}) store.ReferenceResolver {
	return store.ResolverFunc(func(_ context.Context, ident string) (interface{}, error) {
		if id, ok := table[ident]; ok {
			return id, nil
		}
		return nil, errors.Newf(errors.ErrorTypeResolution, "reference %q not found", ident)
	})
}

func TestForeignKey_Clean(t *testing.T) {
	ctx := context.Background()
	w := &ForeignKey{Resolver: mapResolver(map[string]interface{}{
		"alice@example.com": int64(7),
	})}

	t.Run("resolves identifier to related id", func(t *testing.T) {
		v, err := w.Clean(ctx, "alice@example.com", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	t.Run("blank cell means no reference", func(t *testing.T) {
		v, err := w.Clean(ctx, "", nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("unresolvable identifier fails the cell", func(t *testing.T) {
		_, err := w.Clean(ctx, "bob@example.com", nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
	})
}

func TestManyToMany_CleanRender(t *testing.T) {
	ctx := context.Background()
	w := &ManyToMany{Resolver: mapResolver(map[string]interface{}{
		"fiction": int64(1),
		"fantasy": int64(2),
		"sci-fi":  int64(3),
	})}

	t.Run("splits and resolves each identifier", func(t *testing.T) {
		v, err := w.Clean(ctx, "fiction, fantasy", nil)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(1), int64(2)}, v)
	})

	t.Run("blank cell cleans to the empty set", func(t *testing.T) {
		v, err := w.Clean(ctx, "", nil)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{}, v)
	})

	t.Run("first unresolvable identifier fails the whole cell", func(t *testing.T) {
		_, err := w.Clean(ctx, "fiction,unknown,fantasy", nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
		assert.Contains(t, err.Error(), "cannot resolve reference")
	})

	t.Run("render is sorted regardless of input order", func(t *testing.T) {
		s, err := w.Render([]interface{}{int64(3), int64(1), int64(2)})
		require.NoError(t, err)
		assert.Equal(t, "1,2,3", s)
	})

	t.Run("custom delimiter", func(t *testing.T) {
		piped := &ManyToMany{Resolver: w.Resolver, Delimiter: "|"}
		v, err := piped.Clean(ctx, "fiction|sci-fi", nil)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(1), int64(3)}, v)
	})
}
