package simulation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogue(t *testing.T) {
	dir := t.TempDir()

	t.Run("overrides destinations only", func(t *testing.T) {
		path := filepath.Join(dir, "catalogue.toml")
		content := `
[[destinations]]
name = "Bodega Talca"
lat = -35.4264
lng = -71.6554
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cat, err := LoadCatalogue(path)
		require.NoError(t, err)
		require.Len(t, cat.Destinations, 1)
		assert.Equal(t, "Bodega Talca", cat.Destinations[0].Name)
		assert.Equal(t, DefaultCatalogue().Completions, cat.Completions)
	})

	t.Run("empty completions rejected", func(t *testing.T) {
		path := filepath.Join(dir, "empty.toml")
		require.NoError(t, os.WriteFile(path, []byte("completions = []\n"), 0o600))

		_, err := LoadCatalogue(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalogue(filepath.Join(dir, "nope.toml"))
		assert.Error(t, err)
	})
}

func TestRandomStrategies_Deterministic(t *testing.T) {
	cat := DefaultCatalogue()
	ctx := context.Background()

	a := NewRandomResolver(cat, 42)
	b := NewRandomResolver(cat, 42)
	for i := 0; i < 10; i++ {
		da := a.Resolve(ctx, nil, nil)
		db := b.Resolve(ctx, nil, nil)
		assert.Equal(t, da.Name, db.Name)
		require.NotNil(t, da.Latitude)
		assert.True(t, da.Latitude.Equal(*db.Latitude))
	}

	names := make(map[string]bool)
	for _, p := range cat.Destinations {
		names[p.Name] = true
	}
	assert.True(t, names[a.Resolve(ctx, nil, nil).Name])

	n := NewRandomNarrator(cat, 7)
	assert.Contains(t, cat.Completions, n.Narrate(ctx, nil))
}
