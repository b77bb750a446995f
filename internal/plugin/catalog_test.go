package plugin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadaw/novahost/internal/config"
)

func TestCatalogScan(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "gain.nova", `{"name":"Nova Gain","vendor":"Nova Audio","category":"Dynamics","kind":"gain"}`)
	writeBundle(t, dir, "delay.nova", `{"name":"Nova Delay","vendor":"Nova Audio","category":"Delay","kind":"delay"}`)
	writeBundle(t, dir, "readme.txt", "not a bundle")

	c := NewCatalog(config.CatalogConfig{PluginDirs: []string{dir}})
	defer c.Close()

	require.NoError(t, c.Scan())

	plugins := c.Plugins()
	require.Len(t, plugins, 2)

	// descriptors are sorted by path and numbered from zero
	assert.Equal(t, 0, plugins[0].ID)
	assert.Equal(t, 1, plugins[1].ID)
	assert.Equal(t, "Nova Delay", plugins[0].Name)
	assert.Equal(t, "Nova Gain", plugins[1].Name)
	assert.Equal(t, "Nova Audio", plugins[0].Vendor)
	assert.Equal(t, "Delay", plugins[0].Category)
	assert.Equal(t, filepath.Join(dir, "delay.nova"), plugins[0].Path)
}

func TestCatalogSkipsBrokenBundles(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "good.nova", `{"name":"Good","kind":"gain"}`)
	writeBundle(t, dir, "bad.nova", "{{{{")

	c := NewCatalog(config.CatalogConfig{PluginDirs: []string{dir}})
	defer c.Close()

	require.NoError(t, c.Scan())
	require.Len(t, c.Plugins(), 1)
	assert.Equal(t, "Good", c.Plugins()[0].Name)
}

func TestCatalogMissingDirectory(t *testing.T) {
	c := NewCatalog(config.CatalogConfig{
		PluginDirs: []string{filepath.Join(t.TempDir(), "nope")},
	})
	defer c.Close()

	require.NoError(t, c.Scan())
	assert.Empty(t, c.Plugins())
}

func TestCatalogCacheWarmStart(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(t.TempDir(), "catalog.db")
	writeBundle(t, dir, "gain.nova", `{"name":"Cached Gain","vendor":"Nova","category":"FX","kind":"gain"}`)

	cfg := config.CatalogConfig{PluginDirs: []string{dir}, CachePath: cachePath}

	first := NewCatalog(cfg)
	require.NoError(t, first.Scan())
	require.Len(t, first.Plugins(), 1)
	first.Close()

	// second catalog reads the manifest from the cache
	second := NewCatalog(cfg)
	defer second.Close()
	require.NoError(t, second.Scan())
	require.Len(t, second.Plugins(), 1)
	assert.Equal(t, "Cached Gain", second.Plugins()[0].Name)
}

func TestCatalogDBStaleEntryIsMiss(t *testing.T) {
	db, err := openCatalogDB(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer db.close()

	m := manifest{Name: "A", Vendor: "V", Category: "C", Kind: "gain"}
	require.NoError(t, db.store("/plugins/a.nova", 100, m))

	got, ok := db.lookup("/plugins/a.nova", 100)
	require.True(t, ok)
	assert.Equal(t, m, got)

	_, ok = db.lookup("/plugins/a.nova", 200)
	assert.False(t, ok, "changed mtime must invalidate the cache entry")

	_, ok = db.lookup("/plugins/other.nova", 100)
	assert.False(t, ok)

	// upsert replaces the old row
	m2 := manifest{Name: "A2", Vendor: "V", Category: "C", Kind: "delay"}
	require.NoError(t, db.store("/plugins/a.nova", 200, m2))
	got, ok = db.lookup("/plugins/a.nova", 200)
	require.True(t, ok)
	assert.Equal(t, "A2", got.Name)
}

func TestCatalogWatcherPicksUpNewBundle(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "first.nova", `{"name":"First","kind":"gain"}`)

	c := NewCatalog(config.CatalogConfig{PluginDirs: []string{dir}, Watch: true})
	defer c.Close()

	require.NoError(t, c.Scan())
	require.Len(t, c.Plugins(), 1)

	writeBundle(t, dir, "second.nova", `{"name":"Second","kind":"delay"}`)

	assert.Eventually(t, func() bool {
		return len(c.Plugins()) == 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCatalogCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(config.CatalogConfig{PluginDirs: []string{dir}, Watch: true})
	c.Close()
	c.Close()

	_ = os.RemoveAll(dir)
}
