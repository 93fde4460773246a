// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tagcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/autotagger/pkg/types"
)

// fakeClock is a settable clock for expiry tests.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time      { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func newTestCache(t *testing.T, cfg types.CacheConfig) (*Cache, *SQLiteStore, *fakeClock) {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := New(store, cfg, nil)
	require.NoError(t, err)
	clock := newClock()
	c.now = clock.now
	return c, store, clock
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, types.CacheConfig{MaxAge: time.Hour})

	c.Set(ctx, "10.1/x", []string{"Genomics", "CRISPR"})

	got, ok := c.Get(ctx, "10.1/x")
	require.True(t, ok)
	assert.Equal(t, []string{"Genomics", "CRISPR"}, got)
}

func TestCache_Miss(t *testing.T) {
	c, _, _ := newTestCache(t, types.CacheConfig{})
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)

	_, ok = c.Get(context.Background(), "")
	assert.False(t, ok)
}

func TestCache_ExpiryDeletesEagerly(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(t, types.CacheConfig{MaxAge: time.Hour})

	c.Set(ctx, "k", []string{"A"})

	clock.add(time.Hour)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok, "an entry exactly max age old is still valid")

	clock.add(time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired entry should be removed from the store")
}

func TestCache_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(t, types.CacheConfig{MaxAge: time.Hour})

	c.Set(ctx, "k", []string{"old"})
	clock.add(30 * time.Minute)
	c.Set(ctx, "k", []string{"new"})

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"new"}, entries[0].Tags)
	assert.Equal(t, clock.t.UnixMilli(), entries[0].CreatedAt.UnixMilli())

	// Refreshed entry survives past the first entry's expiry.
	clock.add(45 * time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, got)
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, types.CacheConfig{MemoryEntries: 8})

	c.Set(ctx, "a", []string{"1"})
	c.Set(ctx, "b", []string{"2"})

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)

	require.NoError(t, c.Clear(ctx))
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCache_MemoryFrontObeysExpiry(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCache(t, types.CacheConfig{MaxAge: time.Minute, MemoryEntries: 4})

	c.Set(ctx, "k", []string{"A"})
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, got)

	clock.add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.mem.Contains("k"))
}

func TestCache_ReturnedTagsAreCopies(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, types.CacheConfig{MemoryEntries: 4})

	in := []string{"A", "B"}
	c.Set(ctx, "k", in)
	in[0] = "mutated"

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	got[1] = "mutated"

	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []string{"A", "B"}, again)
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("disk on fire")

func (brokenStore) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, errBroken }
func (brokenStore) Upsert(context.Context, Entry) error              { return errBroken }
func (brokenStore) Delete(context.Context, string) error             { return errBroken }
func (brokenStore) Clear(context.Context) error                      { return errBroken }
func (brokenStore) List(context.Context) ([]Entry, error)            { return nil, errBroken }

func TestCache_StorageFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	c, err := New(brokenStore{}, types.CacheConfig{}, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { c.Set(ctx, "k", []string{"A"}) })
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	assert.ErrorIs(t, c.Clear(ctx), errBroken)
}

func TestCache_DefaultMaxAge(t *testing.T) {
	c, err := New(brokenStore{}, types.CacheConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAge, c.MaxAge())
}

func TestOpenSQLite_InMemory(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upsert(ctx, Entry{Key: "k", Tags: []string{"x"}, CreatedAt: time.UnixMilli(1000)}))
	e, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, e.Tags)
	assert.Equal(t, int64(1000), e.CreatedAt.UnixMilli())
}
