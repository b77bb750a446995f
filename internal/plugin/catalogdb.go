package plugin

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// catalogDB persists parsed bundle manifests keyed by path and modification
// time. A stale row (bundle rewritten since caching) is treated as a miss.
type catalogDB struct {
	db *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS plugins (
	path     TEXT PRIMARY KEY,
	mtime    INTEGER NOT NULL,
	name     TEXT NOT NULL,
	vendor   TEXT NOT NULL,
	category TEXT NOT NULL,
	kind     TEXT NOT NULL
);`

func openCatalogDB(path string) (*catalogDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog cache %s: %w", path, err)
	}

	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize catalog cache: %w", err)
	}

	return &catalogDB{db: db}, nil
}

func (d *catalogDB) lookup(path string, mtime int64) (manifest, bool) {
	var m manifest
	var cached int64

	row := d.db.QueryRow(
		`SELECT mtime, name, vendor, category, kind FROM plugins WHERE path = ?`, path)
	if err := row.Scan(&cached, &m.Name, &m.Vendor, &m.Category, &m.Kind); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return manifest{}, false
		}
		return manifest{}, false
	}
	if cached != mtime {
		return manifest{}, false
	}
	return m, true
}

func (d *catalogDB) store(path string, mtime int64, m manifest) error {
	_, err := d.db.Exec(
		`INSERT INTO plugins (path, mtime, name, vendor, category, kind)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   mtime = excluded.mtime,
		   name = excluded.name,
		   vendor = excluded.vendor,
		   category = excluded.category,
		   kind = excluded.kind`,
		path, mtime, m.Name, m.Vendor, m.Category, m.Kind)
	return err
}

func (d *catalogDB) close() {
	_ = d.db.Close()
}
