package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/dataset"
	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/resource"
	"github.com/rowforge/rowforge/pkg/store"
	"github.com/rowforge/rowforge/pkg/widget"
)

func bookResource() *resource.Resource {
	return resource.New("books",
		resource.Field{Attribute: "id", Widget: &widget.Int{}, Import: true, Export: true, ImportID: true},
		resource.Field{Attribute: "name", Widget: &widget.String{}, Import: true, Export: true},
	)
}

func rowWith(t *testing.T, columns []string, values []string) *dataset.Row {
	t.Helper()
	ds := dataset.New(columns...)
	ds.Append(values...)
	row, err := ds.Read().Next()
	require.NoError(t, err)
	return row
}

func TestPlain_Resolve(t *testing.T) {
	ctx := context.Background()
	res := bookResource()
	m := store.NewMemory()

	existing := m.Create()
	existing.Set("name", "stored")
	require.NoError(t, m.Save(ctx, existing))

	rsv := NewPlain(res, m)

	t.Run("matching identity is found", func(t *testing.T) {
		row := rowWith(t, []string{"id", "name"}, []string{"1", "renamed"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.Found, out.State)
		assert.Equal(t, "stored", out.Instance.Get("name"))
	})

	t.Run("unmatched identity is not found", func(t *testing.T) {
		row := rowWith(t, []string{"id", "name"}, []string{"99", "x"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.NotFound, out.State)
	})

	t.Run("blank identity means new record", func(t *testing.T) {
		row := rowWith(t, []string{"id", "name"}, []string{"", "x"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.NotFound, out.State)
	})

	t.Run("no import-id fields means new record", func(t *testing.T) {
		bare := resource.New("bare",
			resource.Field{Attribute: "name", Widget: &widget.String{}, Import: true},
		)
		row := rowWith(t, []string{"name"}, []string{"x"})
		out, err := NewPlain(bare, m).Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.NotFound, out.State)
	})

	t.Run("malformed identity is a resolution error", func(t *testing.T) {
		row := rowWith(t, []string{"id", "name"}, []string{"abc", "x"})
		_, err := rsv.Resolve(ctx, row)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeResolution))
	})
}

func TestCaching_Resolve(t *testing.T) {
	ctx := context.Background()

	emailResource := resource.New("users",
		resource.Field{Attribute: "email", Widget: &widget.String{BlankIsNil: true}, Import: true, ImportID: true},
		resource.Field{Attribute: "name", Widget: &widget.String{}, Import: true},
	)

	m := store.NewMemory()
	for _, attrs := range []map[string]interface{}{
		{"email": "a@example.com", "name": "a"},
		{"email": "dup@example.com", "name": "first"},
		{"email": "dup@example.com", "name": "second"},
	} {
		inst := m.Create()
		for k, v := range attrs {
			inst.Set(k, v)
		}
		require.NoError(t, m.Save(ctx, inst))
	}

	rsv := NewCaching(emailResource, m, 100)

	t.Run("cache hit", func(t *testing.T) {
		row := rowWith(t, []string{"email", "name"}, []string{"a@example.com", "x"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.Found, out.State)
		assert.Equal(t, "a", out.Instance.Get("name"))
	})

	t.Run("cache miss", func(t *testing.T) {
		row := rowWith(t, []string{"email", "name"}, []string{"new@example.com", "x"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.NotFound, out.State)
	})

	t.Run("duplicate identity is ambiguous", func(t *testing.T) {
		row := rowWith(t, []string{"email", "name"}, []string{"dup@example.com", "x"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, store.Ambiguous, out.State)
		assert.Equal(t, 2, out.Matches)
	})

	t.Run("hits return independent copies", func(t *testing.T) {
		row := rowWith(t, []string{"email", "name"}, []string{"a@example.com", "x"})
		out, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		out.Instance.Set("name", "mutated")

		again, err := rsv.Resolve(ctx, row)
		require.NoError(t, err)
		assert.Equal(t, "a", again.Instance.Get("name"))
	})
}
