// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tagcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one cached tag list.
type Entry struct {
	Key       string    `json:"key" yaml:"key"`
	Tags      []string  `json:"tags" yaml:"tags"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store is the persistent table behind a Cache. Implementations must make
// Upsert atomic per key.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]Entry, error)
}

// SQLiteStore keeps entries in a tag_cache table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the cache database at path and ensures the
// schema exists. Use ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating cache directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS tag_cache (
		cache_key TEXT PRIMARY KEY,
		tags TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the entry for key, or false when none exists.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var raw string
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT tags, created_at FROM tag_cache WHERE cache_key = ?`, key,
	).Scan(&raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return decodeEntry(key, raw, created)
}

// Upsert writes e, replacing any entry with the same key.
func (s *SQLiteStore) Upsert(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("encoding cache tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tag_cache (cache_key, tags, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET tags = excluded.tags, created_at = excluded.created_at`,
		e.Key, string(raw), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tag_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tag_cache`); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cache_key, tags, created_at FROM tag_cache ORDER BY created_at DESC, cache_key`)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, raw string
		var created int64
		if err := rows.Scan(&key, &raw, &created); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		e, _, err := decodeEntry(key, raw, created)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func decodeEntry(key, raw string, created int64) (Entry, bool, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return Entry{}, false, fmt.Errorf("decoding cache tags for %q: %w", key, err)
	}
	return Entry{Key: key, Tags: tags, CreatedAt: time.UnixMilli(created)}, true, nil
}
