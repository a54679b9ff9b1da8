package fetch

import (
	"database/sql"
	"errors"
	"time"

	// sqlite driver for the on-disk response cache.
	_ "github.com/mattn/go-sqlite3"
)

// Cache is an on-disk response cache backed by sqlite. It stores raw
// response bodies keyed by URL; freshness is decided per read against
// the caller's cache duration, so one stored response can serve items
// with different cache policies.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS responses (
		url        TEXT PRIMARY KEY,
		body       BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Get returns the cached body for url if it is younger than maxAge.
// maxAge <= 0 means any cached copy is acceptable.
func (c *Cache) Get(url string, maxAge time.Duration) ([]byte, bool, error) {
	var body []byte
	var fetchedAt int64
	err := c.db.QueryRow(
		`SELECT body, fetched_at FROM responses WHERE url = ?`, url,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if maxAge > 0 && time.Since(time.Unix(fetchedAt, 0)) >= maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores (or replaces) the body for url.
func (c *Cache) Put(url string, body []byte) error {
	_, err := c.db.Exec(
		`INSERT INTO responses (url, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		url, body, time.Now().Unix(),
	)
	return err
}

// Purge removes entries older than maxAge.
func (c *Cache) Purge(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := c.db.Exec(`DELETE FROM responses WHERE fetched_at < ?`, cutoff)
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
