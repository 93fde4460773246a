// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tagcache is the persistent key to tag-list cache consulted before
// any external source. It is advisory: read failures become misses and
// write failures are logged and dropped.
package tagcache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/pkg/types"
)

// DefaultMaxAge applies when the configuration leaves MaxAge unset.
const DefaultMaxAge = 24 * time.Hour

// Cache adds age-based expiry and an optional in-memory front to a Store.
type Cache struct {
	store  Store
	maxAge time.Duration
	mem    *lru.Cache[string, Entry]
	logger *slog.Logger

	// now is the clock; tests replace it.
	now func() time.Time
}

// New wraps store. cfg.MemoryEntries > 0 enables the in-process LRU.
func New(store Store, cfg types.CacheConfig, logger *slog.Logger) (*Cache, error) {
	c := &Cache{
		store:  store,
		maxAge: cfg.MaxAge,
		logger: logging.NewComponentLogger(logger, "tagcache"),
		now:    time.Now,
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultMaxAge
	}
	if cfg.MemoryEntries > 0 {
		mem, err := lru.New[string, Entry](cfg.MemoryEntries)
		if err != nil {
			return nil, fmt.Errorf("creating memory cache: %w", err)
		}
		c.mem = mem
	}
	return c, nil
}

// MaxAge reports the configured expiry age.
func (c *Cache) MaxAge() time.Duration { return c.maxAge }

func (c *Cache) expired(e Entry) bool {
	return c.now().Sub(e.CreatedAt) > c.maxAge
}

// Get returns the cached tags for key. Expired entries are deleted and
// reported as absent.
func (c *Cache) Get(ctx context.Context, key string) ([]string, bool) {
	if key == "" {
		return nil, false
	}

	if c.mem != nil {
		if e, ok := c.mem.Get(key); ok {
			if !c.expired(e) {
				return slices.Clone(e.Tags), true
			}
			c.mem.Remove(key)
		}
	}

	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss",
			slog.String(logging.FieldCacheKey, key), logging.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if c.expired(e) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("dropping expired cache entry failed",
				slog.String(logging.FieldCacheKey, key), logging.Error(err))
		}
		c.logger.Debug("cache entry expired", slog.String(logging.FieldCacheKey, key))
		return nil, false
	}

	if c.mem != nil {
		c.mem.Add(key, e)
	}
	return slices.Clone(e.Tags), true
}

// Set stores tags under key, replacing any existing entry.
func (c *Cache) Set(ctx context.Context, key string, tags []string) {
	if key == "" {
		return
	}
	e := Entry{Key: key, Tags: slices.Clone(tags), CreatedAt: c.now()}
	if err := c.store.Upsert(ctx, e); err != nil {
		c.logger.Warn("cache write failed",
			slog.String(logging.FieldCacheKey, key), logging.Error(err))
		if c.mem != nil {
			c.mem.Remove(key)
		}
		return
	}
	if c.mem != nil {
		c.mem.Add(key, e)
	}
}

// Delete removes the entry for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.mem != nil {
		c.mem.Remove(key)
	}
	return c.store.Delete(ctx, key)
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if c.mem != nil {
		c.mem.Purge()
	}
	return c.store.Clear(ctx)
}

// Entries lists the stored entries, including expired ones not yet
// collected, so administrators can see what a Get would discard.
func (c *Cache) Entries(ctx context.Context) ([]Entry, error) {
	return c.store.List(ctx)
}

// Expired reports whether e is past the cache's max age.
func (c *Cache) Expired(e Entry) bool {
	return c.expired(e)
}
