package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupUniverse(t *testing.T) {
	info, ok := LookupUniverse("Harry Potter")
	require.True(t, ok)
	assert.Contains(t, info.Context, "Harry Potter universe")
	assert.NotEmpty(t, info.Characters)
	assert.NotEmpty(t, info.World)

	_, ok = LookupUniverse("Atlantis")
	assert.False(t, ok)

	// Lookup is exact; no case folding.
	_, ok = LookupUniverse("harry potter")
	assert.False(t, ok)
}

func TestUniverseNamesStableOrder(t *testing.T) {
	expected := []string{"Harry Potter", "Lord of the Rings", "Marvel MCU", "Star Wars"}

	first := UniverseNames()
	assert.Equal(t, expected, first)

	// Callers must be able to mutate the returned slice without affecting
	// later calls.
	first[0] = "mutated"
	assert.Equal(t, expected, UniverseNames())

	for _, name := range UniverseNames() {
		_, ok := LookupUniverse(name)
		assert.True(t, ok, "every listed universe must resolve in the catalog")
	}
}
