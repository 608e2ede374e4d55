package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstance_Clone(t *testing.T) {
	in := NewInstance()
	in.ID = 5
	in.Set("name", "original")
	in.SetRelation("tags", []interface{}{1, 2})

	out := in.Clone()
	out.Set("name", "changed")
	out.Relations["tags"][0] = 9

	assert.Equal(t, "original", in.Get("name"))
	assert.Equal(t, []interface{}{1, 2}, in.Relation("tags"))
	assert.Equal(t, 5, out.ID)
}

func TestInstance_IsNew(t *testing.T) {
	in := NewInstance()
	assert.True(t, in.IsNew())
	in.ID = 1
	assert.False(t, in.IsNew())
}

func TestRelationsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []interface{}
		want bool
	}{
		{"both empty", nil, []interface{}{}, true},
		{"same order", []interface{}{1, 2}, []interface{}{1, 2}, true},
		{"different order", []interface{}{1, 2, 3}, []interface{}{3, 1, 2}, true},
		{"different length", []interface{}{1}, []interface{}{1, 2}, false},
		{"different members", []interface{}{1, 2}, []interface{}{1, 3}, false},
		{"duplicates counted", []interface{}{1, 1, 2}, []interface{}{1, 2, 2}, false},
		{"int widths compare equal", []interface{}{int64(1), 2}, []interface{}{1, int64(2)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelationsEqual(tt.a, tt.b))
		})
	}
}

func TestSortedRelationKeys(t *testing.T) {
	keys := SortedRelationKeys([]interface{}{3, 1, 2})
	assert.Equal(t, []string{"1", "2", "3"}, keys)
}
