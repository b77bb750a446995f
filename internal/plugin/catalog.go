package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/novadaw/novahost/internal/config"
	"github.com/novadaw/novahost/internal/logger"
)

// rescanDebounce coalesces bursts of filesystem events into one rescan.
const rescanDebounce = 500 * time.Millisecond

// Catalog enumerates the plugin bundles installed under the configured
// directories. Scan results are cached in a sqlite database keyed by path
// and modification time so restarts skip re-parsing unchanged bundles, and
// an optional filesystem watcher keeps the list current.
type Catalog struct {
	dirs  []string
	cache *catalogDB
	log   *logger.Logger

	mu      sync.RWMutex
	plugins []Descriptor

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCatalog creates a catalog for the configured directories. A cache open
// failure degrades to uncached scanning.
func NewCatalog(cfg config.CatalogConfig) *Catalog {
	c := &Catalog{
		dirs:     cfg.PluginDirs,
		log:      logger.Global().WithPrefix("catalog"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.CachePath != "" {
		cache, err := openCatalogDB(cfg.CachePath)
		if err != nil {
			c.log.Warn("catalog cache unavailable: %v", err)
		} else {
			c.cache = cache
		}
	}

	if cfg.Watch {
		if err := c.startWatcher(); err != nil {
			c.log.Warn("plugin directory watcher unavailable: %v", err)
		}
	} else {
		close(c.done)
	}

	return c
}

// Scan walks the plugin directories and rebuilds the descriptor list.
func (c *Catalog) Scan() error {
	var found []Descriptor

	for _, dir := range c.dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}

		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if info.IsDir() || !strings.HasSuffix(path, ".nova") {
				return nil
			}

			m, ok := c.cachedManifest(path, info.ModTime())
			if !ok {
				var perr error
				m, perr = readManifest(path)
				if perr != nil {
					c.log.Warn("skipping bundle %s: %v", path, perr)
					return nil
				}
				c.storeManifest(path, info.ModTime(), m)
			}

			found = append(found, Descriptor{
				Name:     m.Name,
				Vendor:   m.Vendor,
				Category: m.Category,
				Path:     path,
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	for i := range found {
		found[i].ID = i
	}

	c.mu.Lock()
	c.plugins = found
	c.mu.Unlock()

	c.log.Info("scan complete: %d plugins", len(found))
	return nil
}

// Plugins returns a snapshot of the discovered descriptors.
func (c *Catalog) Plugins() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Descriptor, len(c.plugins))
	copy(out, c.plugins)
	return out
}

// Close stops the watcher and closes the cache.
func (c *Catalog) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		if c.watcher != nil {
			_ = c.watcher.Close()
		}
		<-c.done
		if c.cache != nil {
			c.cache.close()
		}
	})
}

func (c *Catalog) cachedManifest(path string, mtime time.Time) (manifest, bool) {
	if c.cache == nil {
		return manifest{}, false
	}
	return c.cache.lookup(path, mtime.UnixNano())
}

func (c *Catalog) storeManifest(path string, mtime time.Time, m manifest) {
	if c.cache == nil {
		return
	}
	if err := c.cache.store(path, mtime.UnixNano(), m); err != nil {
		c.log.Debug("cache store failed for %s: %v", path, err)
	}
}

func (c *Catalog) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		close(c.done)
		return err
	}

	watched := 0
	for _, dir := range c.dirs {
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if addErr := watcher.Add(dir); addErr != nil {
			c.log.Warn("cannot watch %s: %v", dir, addErr)
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = watcher.Close()
		close(c.done)
		return nil
	}

	c.watcher = watcher
	go c.watchLoop()
	return nil
}

// watchLoop debounces filesystem events into rescans.
func (c *Catalog) watchLoop() {
	defer close(c.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-c.stopChan:
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".nova") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(rescanDebounce)
				timerC = timer.C
			} else {
				timer.Reset(rescanDebounce)
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn("watch error: %v", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if err := c.Scan(); err != nil {
				c.log.Warn("rescan failed: %v", err)
			}
		}
	}
}
