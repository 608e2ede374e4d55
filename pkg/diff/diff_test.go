package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/models"
	"github.com/rowforge/rowforge/pkg/resource"
	"github.com/rowforge/rowforge/pkg/widget"
)

func diffResource() *resource.Resource {
	return resource.New("books",
		resource.Field{Attribute: "id", Widget: &widget.Int{}, Import: true, Export: true, ImportID: true},
		resource.Field{Attribute: "name", Widget: &widget.String{}, Import: true, Export: true},
		resource.Field{Attribute: "author", Widget: &widget.String{}, Import: true, Export: true},
	)
}

func TestEngine_Compare(t *testing.T) {
	res := diffResource()
	eng := NewEngine(res, Config{})

	before := models.NewInstance()
	before.ID = 1
	before.Set("name", "The Hobbit")
	before.Set("author", "J.R.R. Tolkien")

	snap, err := eng.Capture(before)
	require.NoError(t, err)

	after := before.Clone()
	after.Set("author", "John Tolkien")

	diffs, err := eng.Compare(snap, after)
	require.NoError(t, err)
	require.Len(t, diffs, 3)

	assert.Equal(t, "id", diffs[0].Column)
	assert.False(t, diffs[0].Changed)
	assert.Equal(t, "1", diffs[0].Rendered)

	assert.False(t, diffs[1].Changed)
	assert.Equal(t, "The Hobbit", diffs[1].Rendered)

	assert.True(t, diffs[2].Changed)
	assert.Equal(t, "[-J.R.R.-] {+John+} Tolkien", diffs[2].Rendered)
}

func TestEngine_CompareAgainstEmpty(t *testing.T) {
	res := diffResource()
	eng := NewEngine(res, Config{})

	snap, err := eng.Capture(nil)
	require.NoError(t, err)

	after := models.NewInstance()
	after.ID = 1
	after.Set("name", "New Book")
	after.Set("author", "Someone")

	diffs, err := eng.Compare(snap, after)
	require.NoError(t, err)
	assert.True(t, diffs[1].Changed)
	assert.Equal(t, "{+New Book+}", diffs[1].Rendered)

	t.Run("deletion renders removed runs", func(t *testing.T) {
		before := after.Clone()
		snap, err := eng.Capture(before)
		require.NoError(t, err)

		diffs, err := eng.Compare(snap, models.NewInstance())
		require.NoError(t, err)
		assert.True(t, diffs[1].Changed)
		assert.Equal(t, "[-New Book-]", diffs[1].Rendered)
	})
}

func TestEngine_TokenCap(t *testing.T) {
	res := resource.New("texts",
		resource.Field{Attribute: "body", Widget: &widget.String{}, Import: true, Export: true},
	)
	eng := NewEngine(res, Config{TokenCap: 2})

	before := models.NewInstance()
	before.ID = 1
	before.Set("body", "a b c d")
	snap, err := eng.Capture(before)
	require.NoError(t, err)

	after := before.Clone()
	after.Set("body", "a b x d")

	diffs, err := eng.Compare(snap, after)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.True(t, diffs[0].Changed)
	// past the distinct-token cap the tail is one opaque unit
	assert.Equal(t, "a b [-c d-] {+x d+}", diffs[0].Rendered)
}

func TestEngine_CustomDelimiter(t *testing.T) {
	res := resource.New("paths",
		resource.Field{Attribute: "path", Widget: &widget.String{}, Import: true, Export: true},
	)
	eng := NewEngine(res, Config{Delimiter: "/"})

	before := models.NewInstance()
	before.ID = 1
	before.Set("path", "usr/local/bin")
	snap, err := eng.Capture(before)
	require.NoError(t, err)

	after := before.Clone()
	after.Set("path", "usr/share/bin")

	diffs, err := eng.Compare(snap, after)
	require.NoError(t, err)
	assert.Equal(t, "usr/[-local-]/{+share+}/bin", diffs[0].Rendered)
}

func TestEngine_Changed(t *testing.T) {
	res := resource.New("books",
		resource.Field{Attribute: "id", Widget: &widget.Int{}, Import: true, Export: true, ImportID: true},
		resource.Field{Attribute: "name", Widget: &widget.String{}, Import: true, Export: true},
		resource.Field{Attribute: "tags", Widget: &widget.ManyToMany{}, Import: true, Export: true, Relation: true},
	)
	eng := NewEngine(res, Config{})

	base := models.NewInstance()
	base.ID = 1
	base.Set("name", "same")
	base.SetRelation("tags", []interface{}{1, 2})

	t.Run("identical instances are unchanged", func(t *testing.T) {
		assert.False(t, eng.Changed(base, base.Clone()))
	})

	t.Run("scalar change detected", func(t *testing.T) {
		after := base.Clone()
		after.Set("name", "different")
		assert.True(t, eng.Changed(base, after))
	})

	t.Run("relation order does not matter", func(t *testing.T) {
		after := base.Clone()
		after.SetRelation("tags", []interface{}{2, 1})
		assert.False(t, eng.Changed(base, after))
	})

	t.Run("relation membership change detected", func(t *testing.T) {
		after := base.Clone()
		after.SetRelation("tags", []interface{}{1, 3})
		assert.True(t, eng.Changed(base, after))
	})

	t.Run("int widths compare equal", func(t *testing.T) {
		after := base.Clone()
		after.ID = int64(1)
		assert.False(t, eng.Changed(base, after))
	})

	t.Run("nil before is always changed", func(t *testing.T) {
		assert.True(t, eng.Changed(nil, base))
	})
}

func TestWordDiff_LongInput(t *testing.T) {
	// both sides well past the cap still produce a bounded, marked result
	oldTokens := make([]string, 0, 600)
	newTokens := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		oldTokens = append(oldTokens, "a")
		newTokens = append(newTokens, "a")
	}
	newTokens[599] = "b"

	out := wordDiff(strings.Join(oldTokens, " "), strings.Join(newTokens, " "), Config{})
	assert.Contains(t, out, "[-")
	assert.Contains(t, out, "{+b+}")
}
