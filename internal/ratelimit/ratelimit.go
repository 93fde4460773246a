// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit enforces a minimum interval between requests to each
// external source. Callers for the same source are serialised; callers for
// different sources never wait on each other.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Well-known source identifiers.
const (
	SourcePubMed = "pubmed"
	SourceAI     = "ai"
)

// Default minimum intervals, reflecting the providers' published quotas.
const (
	DefaultPubMedInterval = 350 * time.Millisecond
	DefaultAIInterval     = 12 * time.Second
)

// Limiter holds one token bucket per source. Each bucket has a burst of one
// and refills once per interval, so a reservation is the single atomic
// read-modify-write of the source's last call time.
type Limiter struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	limiters  map[string]*rate.Limiter
	fallback  time.Duration
}

// New creates a Limiter with the given per-source intervals. Sources not in
// the map use fallback.
func New(intervals map[string]time.Duration, fallback time.Duration) *Limiter {
	l := &Limiter{
		intervals: make(map[string]time.Duration, len(intervals)),
		limiters:  make(map[string]*rate.Limiter),
		fallback:  fallback,
	}
	for src, d := range intervals {
		l.intervals[src] = d
	}
	return l
}

// Wait blocks until the source may issue its next request, or until ctx is
// done. Concurrent callers of one source are admitted in arrival order.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	if err := l.limiter(source).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", source, err)
	}
	return nil
}

// Interval returns the configured minimum interval for source.
func (l *Limiter) Interval(source string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intervalLocked(source)
}

func (l *Limiter) intervalLocked(source string) time.Duration {
	if d, ok := l.intervals[source]; ok {
		return d
	}
	return l.fallback
}

func (l *Limiter) limiter(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[source]; ok {
		return lim
	}
	limit := rate.Inf
	if d := l.intervalLocked(source); d > 0 {
		limit = rate.Every(d)
	}
	lim := rate.NewLimiter(limit, 1)
	l.limiters[source] = lim
	return lim
}
