package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func projectionFixture() map[string]any {
	return map[string]any{
		"_id":  "c1",
		"name": "Bob",
		"age":  12,
		"favorites": map[string]any{
			"animal": "Boar",
			"color":  "Black",
		},
		"purchases": []any{
			map[string]any{"item": "p1", "number": 2},
			"not-a-document",
			map[string]any{"item": "p2", "number": 1},
		},
	}
}

func TestSelectProjection(t *testing.T) {
	for name, test := range map[string]struct {
		fields   string
		expected Projection
	}{
		"Empty":     {fields: ""},
		"Comma":     {fields: "name,-age", expected: Projection{{Key: "name", Value: 1}, {Key: "age", Value: 0}}},
		"Spaces":    {fields: "name  age", expected: Projection{{Key: "name", Value: 1}, {Key: "age", Value: 1}}},
		"Repeated":  {fields: "name,-name", expected: Projection{{Key: "name", Value: 0}}},
		"BareMinus": {fields: "-,name", expected: Projection{{Key: "name", Value: 1}}},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, SelectProjection(test.fields))
		})
	}
}

func TestProjectionHelpers(t *testing.T) {
	p := SelectProjection("name,-age")

	assert.True(t, p.Has("name"))
	assert.False(t, p.Has("favorites"))
	assert.Equal(t, []string{"name", "age"}, p.Keys())
	assert.Equal(t, "name,-age", p.String())
	assert.True(t, p.Inclusive())

	deleted := p.Delete("name")
	assert.False(t, deleted.Inclusive())
	assert.True(t, p.Has("name"))

	set := p.Set("age", 1)
	v, _ := p.Get("age")
	assert.Equal(t, 0, v)
	v, _ = set.Get("age")
	assert.Equal(t, 1, v)

	assert.False(t, SelectProjection("-_id").Inclusive())
}

func TestIncluded(t *testing.T) {
	assert.True(t, Included(1))
	assert.True(t, Included(int32(1)))
	assert.True(t, Included(true))
	assert.True(t, Included(map[string]any{"$slice": 1}))
	assert.False(t, Included(0))
	assert.False(t, Included(int64(0)))
	assert.False(t, Included(0.0))
	assert.False(t, Included(false))
	assert.False(t, Included(nil))
}

func TestProjectionApply(t *testing.T) {
	t.Run("EmptyCopies", func(t *testing.T) {
		doc := projectionFixture()
		out := Projection(nil).Apply(doc)
		assert.Equal(t, doc, out)

		out["favorites"].(map[string]any)["animal"] = "Cat"
		assert.Equal(t, "Boar", doc["favorites"].(map[string]any)["animal"])
	})
	t.Run("Inclusive", func(t *testing.T) {
		out := SelectProjection("name,favorites.color,purchases.item").Apply(projectionFixture())
		assert.Equal(t, map[string]any{
			"_id":       "c1",
			"name":      "Bob",
			"favorites": map[string]any{"color": "Black"},
			"purchases": []any{
				map[string]any{"item": "p1"},
				map[string]any{"item": "p2"},
			},
		}, out)
	})
	t.Run("InclusiveWithoutID", func(t *testing.T) {
		out := SelectProjection("name,-_id").Apply(projectionFixture())
		assert.Equal(t, map[string]any{"name": "Bob"}, out)
	})
	t.Run("Exclusive", func(t *testing.T) {
		doc := projectionFixture()
		out := SelectProjection("-age,-favorites.animal,-purchases.number").Apply(doc)

		assert.NotContains(t, out, "age")
		assert.Equal(t, map[string]any{"color": "Black"}, out["favorites"])
		assert.Equal(t, []any{
			map[string]any{"item": "p1"},
			"not-a-document",
			map[string]any{"item": "p2"},
		}, out["purchases"])

		assert.Equal(t, 12, doc["age"])
		assert.Contains(t, doc["favorites"], "animal")
	})
	t.Run("MissingPaths", func(t *testing.T) {
		out := SelectProjection("nickname,name.first").Apply(projectionFixture())
		assert.Equal(t, map[string]any{"_id": "c1"}, out)
	})
}
