// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library is the local item store the tagger writes to: items
// imported from CSL files, their tags with an automatic flag, and CSL
// export. It stands in for a reference manager's database.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/pkg/types"
)

// ErrItemNotFound is returned by Get for an unknown ID.
var ErrItemNotFound = errors.New("item not found")

// Library manages the item database.
type Library struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the library database at path and ensures the
// schema exists.
func Open(path string, logger *slog.Logger) (*Library, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Library{
		db:     db,
		logger: logging.NewComponentLogger(logger, "library"),
		now:    time.Now,
	}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Library) Close() error {
	return l.db.Close()
}

func (l *Library) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			item_type TEXT,
			title TEXT,
			abstract TEXT,
			doi TEXT,
			extra TEXT,
			pmid TEXT,
			venue TEXT,
			date TEXT,
			creators TEXT,
			date_added TEXT NOT NULL,
			date_modified TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS item_tags (
			item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			automatic INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (item_id, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// ImportSummary counts the outcome of Add.
type ImportSummary struct {
	Added   int
	Updated int

	// New holds the items that did not exist before, for auto-tagging.
	New []types.Item
}

// Add inserts items, or refreshes the metadata of items whose ID already
// exists. Tags carried by imported items are added as manual tags; existing
// tags are kept. Items without an ID get a generated one.
func (l *Library) Add(ctx context.Context, items []types.Item) (ImportSummary, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := l.now().UTC().Format(time.RFC3339Nano)
	var summary ImportSummary
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}

		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM items WHERE id = ?`, item.ID).Scan(&exists); err != nil {
			return ImportSummary{}, fmt.Errorf("checking item %s: %w", item.ID, err)
		}

		creators, err := json.Marshal(item.Creators)
		if err != nil {
			return ImportSummary{}, fmt.Errorf("encoding creators for %s: %w", item.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, item_type, title, abstract, doi, extra, pmid, venue, date, creators, date_added, date_modified)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				item_type=excluded.item_type, title=excluded.title, abstract=excluded.abstract,
				doi=excluded.doi, extra=excluded.extra, pmid=excluded.pmid, venue=excluded.venue,
				date=excluded.date, creators=excluded.creators, date_modified=excluded.date_modified`,
			item.ID, item.ItemType, item.Title, item.Abstract, item.DOI, item.Extra,
			item.PMIDHint, item.Venue, item.Date, string(creators), now, now,
		)
		if err != nil {
			return ImportSummary{}, fmt.Errorf("upserting item %s: %w", item.ID, err)
		}

		if err := insertTags(ctx, tx, item.ID, item.Tags, false); err != nil {
			return ImportSummary{}, err
		}

		if exists > 0 {
			summary.Updated++
		} else {
			summary.Added++
			summary.New = append(summary.New, item)
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportSummary{}, fmt.Errorf("committing import: %w", err)
	}
	l.logger.Debug("items imported", slog.Int("added", summary.Added), slog.Int("updated", summary.Updated))
	return summary, nil
}

// ApplyTags adds tags to item with the automatic flag and saves the item's
// modification time, all in one transaction. Tags the item already has
// keep their existing flag.
func (l *Library) ApplyTags(ctx context.Context, item types.Item, tags []string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET date_modified = ? WHERE id = ?`,
		l.now().UTC().Format(time.RFC3339Nano), item.ID)
	if err != nil {
		return fmt.Errorf("saving item %s: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}

	if err := insertTags(ctx, tx, item.ID, tags, true); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTags(ctx context.Context, tx *sql.Tx, itemID string, tags []string, automatic bool) error {
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO item_tags (item_id, tag, automatic) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tag insert: %w", err)
	}
	defer stmt.Close()

	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, itemID, tag, automatic); err != nil {
			return fmt.Errorf("adding tag %q to %s: %w", tag, itemID, err)
		}
	}
	return nil
}

// Get returns one item with its tags.
func (l *Library) Get(ctx context.Context, id string) (types.Item, error) {
	items, err := l.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return types.Item{}, err
	}
	if len(items) == 0 {
		return types.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return items[0], nil
}

// Items returns the items with the given IDs in that order, or every item
// in insertion order when ids is empty.
func (l *Library) Items(ctx context.Context, ids ...string) ([]types.Item, error) {
	if len(ids) == 0 {
		return l.query(ctx, `ORDER BY date_added, rowid`)
	}
	items := make([]types.Item, 0, len(ids))
	for _, id := range ids {
		item, err := l.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// AllTags returns every distinct tag in the library, sorted case-insensitively.
func (l *Library) AllTags(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT tag FROM item_tags ORDER BY tag COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return scanTags(rows)
}

// AutomaticTags returns the tags on id that were added by the tagger.
func (l *Library) AutomaticTags(ctx context.Context, id string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tag FROM item_tags WHERE item_id = ? AND automatic = 1 ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("listing automatic tags: %w", err)
	}
	return scanTags(rows)
}

func (l *Library) query(ctx context.Context, clause string, args ...any) ([]types.Item, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, item_type, title, abstract, doi, extra, pmid, venue, date, creators FROM items `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []types.Item
	for rows.Next() {
		var it types.Item
		var creators string
		if err := rows.Scan(&it.ID, &it.ItemType, &it.Title, &it.Abstract, &it.DOI,
			&it.Extra, &it.PMIDHint, &it.Venue, &it.Date, &creators); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if creators != "" && creators != "null" {
			if err := json.Unmarshal([]byte(creators), &it.Creators); err != nil {
				return nil, fmt.Errorf("decoding creators for %s: %w", it.ID, err)
			}
		}
		if it.PMIDHint == "" {
			it.PMIDHint = types.ParsePMID(it.Extra)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range items {
		tags, err := l.tags(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Tags = tags
	}
	return items, nil
}

func (l *Library) tags(ctx context.Context, id string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT tag FROM item_tags WHERE item_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("listing tags for %s: %w", id, err)
	}
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
