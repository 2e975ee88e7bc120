package discovery

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS records (
	path           TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL,
	changes        INTEGER NOT NULL DEFAULT 0,
	ahead          INTEGER NOT NULL DEFAULT 0,
	resolved       INTEGER NOT NULL DEFAULT 0,
	probe_error    TEXT NOT NULL DEFAULT '',
	last_probed_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const lastScannedKey = "last_scanned"

// Cache persists the Store snapshot between runs in a SQLite file.
type Cache struct {
	Path string

	mu sync.Mutex
	db *sql.DB
}

// NewCache creates a cache backed by the database at path. The file is
// created on first Save.
func NewCache(path string) *Cache {
	return &Cache{
		Path: path,
	}
}

func (c *Cache) open(ctx context.Context, create bool) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	if !create {
		if _, err := os.Stat(c.Path); os.IsNotExist(err) {
			return nil, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}

	db, err := sql.Open("sqlite", c.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(time.Minute)

	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize cache schema")
	}

	c.db = db
	return db, nil
}

// Load reads the cached records and the time of the last complete scan,
// which is zero when none was recorded. A missing cache file is not an error
// and yields no records.
func (c *Cache) Load(ctx context.Context) ([]Record, time.Time, error) {
	db, err := c.open(ctx, false)
	if err != nil || db == nil {
		return nil, time.Time{}, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT path, display_name, changes, ahead, resolved, probe_error, last_probed_at
		FROM records
		ORDER BY path
	`)
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to query cached records")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			probedAt int64
		)
		if err := rows.Scan(&rec.Path, &rec.DisplayName, &rec.Changes, &rec.Ahead, &rec.Resolved, &rec.ProbeError, &probedAt); err != nil {
			return nil, time.Time{}, errors.Wrap(err, "failed to scan cached record")
		}
		if probedAt > 0 {
			rec.LastProbedAt = time.Unix(0, probedAt)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to iterate cached records")
	}

	var lastScanned time.Time
	var stamp int64
	err = db.QueryRowContext(ctx, `SELECT CAST(value AS INTEGER) FROM meta WHERE key = ?`, lastScannedKey).Scan(&stamp)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, time.Time{}, errors.Wrap(err, "failed to read cache timestamp")
	default:
		lastScanned = time.Unix(0, stamp)
	}

	return records, lastScanned, nil
}

// Save replaces the cached records with records. The last-scanned stamp is
// left alone; see MarkScanned.
func (c *Cache) Save(ctx context.Context, records []Record) error {
	db, err := c.open(ctx, true)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin cache transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return errors.Wrap(err, "failed to clear cached records")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (path, display_name, changes, ahead, resolved, probe_error, last_probed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare cache insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		var probedAt int64
		if !rec.LastProbedAt.IsZero() {
			probedAt = rec.LastProbedAt.UnixNano()
		}
		if _, err := stmt.ExecContext(ctx, rec.Path, rec.DisplayName, rec.Changes, rec.Ahead, rec.Resolved, rec.ProbeError, probedAt); err != nil {
			return errors.Wrapf(err, "failed to cache record %s", rec.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit cache")
	}
	return nil
}

// MarkScanned records at as the time of the last complete scan of every
// configured root.
func (c *Cache) MarkScanned(ctx context.Context, at time.Time) error {
	db, err := c.open(ctx, true)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, lastScannedKey, at.UnixNano()); err != nil {
		return errors.Wrap(err, "failed to stamp cache")
	}
	return nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
