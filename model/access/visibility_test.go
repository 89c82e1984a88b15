package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldVisibilityExcluded(t *testing.T) {
	v := FieldVisibility{
		Model:     "Customer",
		Private:   []string{"favorites.animal"},
		Protected: []string{"age"},
	}

	assert.ElementsMatch(t, []string{"favorites.animal", "age"}, v.Excluded(Public))
	assert.Equal(t, []string{"favorites.animal"}, v.Excluded(Protected))
	assert.Empty(t, v.Excluded(Private))
}

func TestRegistry(t *testing.T) {
	t.Run("RequiresModelName", func(t *testing.T) {
		assert.Error(t, NewRegistry().Register(FieldVisibility{Private: []string{"a"}}))
	})
	t.Run("StoresCopies", func(t *testing.T) {
		r := NewRegistry()
		v := FieldVisibility{Model: "Customer", Private: []string{"ssn"}}
		require.NoError(t, r.Register(v))

		v.Private[0] = "name"
		stored, ok := r.Get("Customer")
		require.True(t, ok)
		assert.Equal(t, []string{"ssn"}, stored.Private)

		stored.Private[0] = "name"
		excluded, ok := r.Excluded("Customer", Public)
		require.True(t, ok)
		assert.Equal(t, []string{"ssn"}, excluded)
	})
	t.Run("ReplacesEntries", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(FieldVisibility{Model: "Customer", Private: []string{"ssn"}}))
		require.NoError(t, r.Register(FieldVisibility{Model: "Customer", Protected: []string{"age"}}))

		excluded, ok := r.Excluded("Customer", Protected)
		require.True(t, ok)
		assert.Empty(t, excluded)
		excluded, _ = r.Excluded("Customer", Public)
		assert.Equal(t, []string{"age"}, excluded)
	})
	t.Run("UnknownModel", func(t *testing.T) {
		excluded, ok := NewRegistry().Excluded("Vendor", Public)
		assert.False(t, ok)
		assert.Nil(t, excluded)
	})
	t.Run("ListsModels", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(FieldVisibility{Model: "Product"}))
		require.NoError(t, r.Register(FieldVisibility{Model: "Customer"}))
		assert.Equal(t, []string{"Customer", "Product"}, r.Models())
	})
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" Protected ")
	require.NoError(t, err)
	assert.Equal(t, Protected, l)

	_, err = ParseLevel("admin")
	assert.Error(t, err)
}
