package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/errors"
	"github.com/rowforge/rowforge/pkg/models"
)

func seedRecord(t *testing.T, m *Memory, attrs map[string]interface{}) *models.Instance {
	t.Helper()
	inst := m.Create()
	for k, v := range attrs {
		inst.Set(k, v)
	}
	require.NoError(t, m.Save(context.Background(), inst))
	return inst
}

func TestMemory_SaveAssignsIdentity(t *testing.T) {
	m := NewMemory()
	first := seedRecord(t, m, map[string]interface{}{"name": "a"})
	second := seedRecord(t, m, map[string]interface{}{"name": "b"})

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, m.SaveCount())
}

func TestMemory_Find(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedRecord(t, m, map[string]interface{}{"name": "unique", "group": "x"})
	seedRecord(t, m, map[string]interface{}{"name": "dup", "group": "y"})
	seedRecord(t, m, map[string]interface{}{"name": "dup", "group": "y"})

	t.Run("exactly one match", func(t *testing.T) {
		res, err := m.Find(ctx, Criteria{"name": "unique"})
		require.NoError(t, err)
		assert.Equal(t, Found, res.State)
		assert.Equal(t, "x", res.Instance.Get("group"))
	})

	t.Run("no match", func(t *testing.T) {
		res, err := m.Find(ctx, Criteria{"name": "missing"})
		require.NoError(t, err)
		assert.Equal(t, NotFound, res.State)
		assert.Nil(t, res.Instance)
	})

	t.Run("multiple matches are ambiguous", func(t *testing.T) {
		res, err := m.Find(ctx, Criteria{"name": "dup"})
		require.NoError(t, err)
		assert.Equal(t, Ambiguous, res.State)
		assert.Equal(t, 2, res.Matches)
	})

	t.Run("identity matches across value widths", func(t *testing.T) {
		res, err := m.Find(ctx, Criteria{"id": int64(1)})
		require.NoError(t, err)
		assert.Equal(t, Found, res.State)
	})

	t.Run("found instance is a copy", func(t *testing.T) {
		res, err := m.Find(ctx, Criteria{"name": "unique"})
		require.NoError(t, err)
		res.Instance.Set("group", "mutated")

		res2, err := m.Find(ctx, Criteria{"name": "unique"})
		require.NoError(t, err)
		assert.Equal(t, "x", res2.Instance.Get("group"))
	})
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	inst := seedRecord(t, m, map[string]interface{}{"name": "a"})

	require.NoError(t, m.Delete(ctx, inst))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, m.DeleteCount())

	err := m.Delete(ctx, inst)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStore))
}

func TestMemory_SaveRelations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	inst := seedRecord(t, m, map[string]interface{}{"name": "a"})

	inst.SetRelation("tags", []interface{}{1, 2})
	require.NoError(t, m.SaveRelations(ctx, inst))

	stored, ok := m.GetByID(inst.ID)
	require.True(t, ok)
	assert.Equal(t, []interface{}{1, 2}, stored.Relation("tags"))

	t.Run("scalar save keeps stored relations", func(t *testing.T) {
		inst.Relations = map[string][]interface{}{}
		inst.Set("name", "renamed")
		require.NoError(t, m.Save(ctx, inst))

		stored, ok := m.GetByID(inst.ID)
		require.True(t, ok)
		assert.Equal(t, "renamed", stored.Get("name"))
		assert.Equal(t, []interface{}{1, 2}, stored.Relation("tags"))
	})
}

func TestMemory_Transactions(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback restores the snapshot", func(t *testing.T) {
		m := NewMemory()
		kept := seedRecord(t, m, map[string]interface{}{"name": "kept"})

		require.NoError(t, m.Begin(ctx))
		seedRecord(t, m, map[string]interface{}{"name": "discarded"})
		require.NoError(t, m.Delete(ctx, kept))
		require.NoError(t, m.Rollback(ctx))

		assert.Equal(t, 1, m.Len())
		_, ok := m.GetByID(kept.ID)
		assert.True(t, ok)
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Begin(ctx))
		seedRecord(t, m, map[string]interface{}{"name": "a"})
		require.NoError(t, m.Commit(ctx))
		assert.Equal(t, 1, m.Len())
	})

	t.Run("rollback restores identity sequence", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Begin(ctx))
		seedRecord(t, m, map[string]interface{}{"name": "a"})
		require.NoError(t, m.Rollback(ctx))

		inst := seedRecord(t, m, map[string]interface{}{"name": "b"})
		assert.Equal(t, 1, inst.ID)
	})

	t.Run("nested begin fails", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Begin(ctx))
		assert.Error(t, m.Begin(ctx))
	})

	t.Run("commit without begin fails", func(t *testing.T) {
		m := NewMemory()
		assert.Error(t, m.Commit(ctx))
		assert.Error(t, m.Rollback(ctx))
	})
}

func TestMemory_Scan(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedRecord(t, m, map[string]interface{}{"name": "a"})
	seedRecord(t, m, map[string]interface{}{"name": "b"})

	var names []string
	err := m.Scan(ctx, 10, func(inst *models.Instance) error {
		names = append(names, inst.Get("name").(string))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names, "scan follows insertion order")
}

func TestByAttribute(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedRecord(t, m, map[string]interface{}{"email": "alice@example.com"})

	resolver := ByAttribute(m, "email")

	id, err := resolver.ResolveReference(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = resolver.ResolveReference(ctx, "nobody@example.com")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeResolution))
}
