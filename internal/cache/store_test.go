package cache_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/skolmap/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Lookup(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()

	path := filepath.Join(filet.TmpDir(t, ""), "address_cache.json")
	store := cache.NewStore[string](path, logger)

	t.Run("absent key", func(t *testing.T) {
		value, ok := store.Lookup("12345")

		assert.False(t, ok)
		assert.Nil(t, value)
	})

	t.Run("present key", func(t *testing.T) {
		addr := "Kungsgatan 10"
		store.Put("12345", &addr)

		value, ok := store.Lookup("12345")

		require.True(t, ok)
		require.NotNil(t, value)
		assert.Equal(t, "Kungsgatan 10", *value)
	})

	t.Run("present key with negative result", func(t *testing.T) {
		store.Put("99999", nil)

		value, ok := store.Lookup("99999")

		assert.True(t, ok, "cached failure must be distinguishable from an absent key")
		assert.Nil(t, value)
	})
}

func TestStore_RoundTrip(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()
	dir := filet.TmpDir(t, "")

	t.Run("values and negative entries survive a flush and reload", func(t *testing.T) {
		path := filepath.Join(dir, "roundtrip.json")
		store := cache.NewStore[string](path, logger)

		addr := "Kungsgatan 10"
		store.Put("12345", &addr)
		store.Put("54321", nil)

		require.NoError(t, store.Flush())

		reloaded := cache.NewStore[string](path, logger)
		require.Equal(t, 2, reloaded.Len())

		value, ok := reloaded.Lookup("12345")
		require.True(t, ok)
		require.NotNil(t, value)
		assert.Equal(t, "Kungsgatan 10", *value)

		value, ok = reloaded.Lookup("54321")
		assert.True(t, ok)
		assert.Nil(t, value)
	})

	t.Run("empty store round-trips", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		store := cache.NewStore[string](path, logger)

		require.NoError(t, store.Flush())

		reloaded := cache.NewStore[string](path, logger)
		assert.Equal(t, 0, reloaded.Len())
	})

	t.Run("coordinate pairs round-trip", func(t *testing.T) {
		path := filepath.Join(dir, "coords.json")
		store := cache.NewStore[[]float64](path, logger)

		pair := []float64{59.86, 17.64}
		store.Put("Kungsgatan 10|Uppsala", &pair)
		store.Put("None|Atlantis", nil)

		require.NoError(t, store.Flush())

		reloaded := cache.NewStore[[]float64](path, logger)
		value, ok := reloaded.Lookup("Kungsgatan 10|Uppsala")
		require.True(t, ok)
		require.NotNil(t, value)
		assert.Equal(t, []float64{59.86, 17.64}, *value)

		value, ok = reloaded.Lookup("None|Atlantis")
		assert.True(t, ok)
		assert.Nil(t, value)
	})
}

func TestStore_LoadFailsSoft(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()
	dir := filet.TmpDir(t, "")

	t.Run("missing file yields empty store", func(t *testing.T) {
		store := cache.NewStore[string](filepath.Join(dir, "does-not-exist.json"), logger)

		assert.Equal(t, 0, store.Len())
	})

	t.Run("corrupt file yields empty store", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		store := cache.NewStore[string](path, logger)

		assert.Equal(t, 0, store.Len())
	})
}

func TestStore_FlushReplacesFileAtomically(t *testing.T) {
	defer filet.CleanUp(t)
	logger := slog.Default()
	dir := filet.TmpDir(t, "")
	path := filepath.Join(dir, "cache.json")

	store := cache.NewStore[string](path, logger)
	addr := "Storgatan 1"
	store.Put("1", &addr)
	require.NoError(t, store.Flush())

	other := "Lillgatan 2"
	store.Put("2", &other)
	require.NoError(t, store.Flush())

	// No temp files left behind, and the file parses cleanly.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	reloaded := cache.NewStore[string](path, logger)
	assert.Equal(t, 2, reloaded.Len())
}
