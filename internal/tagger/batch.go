// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/pkg/types"
)

// DefaultItemDelay paces consecutive batch items.
const DefaultItemDelay = 300 * time.Millisecond

// TagGenerator produces tags for one item; *Generator satisfies it.
type TagGenerator interface {
	GenerateTags(ctx context.Context, item types.Item) ([]string, error)
}

// Applier writes tags to the host's copy of an item. Implementations apply
// all tags and save the item inside one transaction.
type Applier interface {
	ApplyTags(ctx context.Context, item types.Item, tags []string) error
}

// ProgressFunc is called as each item starts, after the courtesy delay that
// precedes it, with the item's 1-based position.
type ProgressFunc func(current, total int, item types.Item)

// ItemError records why one item failed.
type ItemError struct {
	ItemID string
	Title  string
	Err    error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.ItemID, e.Title, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// BatchResult holds the counters of one batch run.
type BatchResult struct {
	RunID   string
	Success int
	Failed  int
	Skipped int
	Errors  []ItemError

	// Stopped reports that the context was cancelled before every item
	// was processed.
	Stopped bool
}

// Total returns the number of items processed.
func (r BatchResult) Total() int {
	return r.Success + r.Failed + r.Skipped
}

// Batch tags a list of items one at a time.
type Batch struct {
	generator TagGenerator
	applier   Applier
	cfg       types.BatchConfig
	logger    *slog.Logger

	// DryRun generates tags without applying them.
	DryRun bool

	// OnTags, when set, receives each non-empty tag set before it is applied.
	OnTags func(item types.Item, tags []string)

	// sleep waits between items; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatch creates a batch runner. A zero cfg.ItemDelay uses DefaultItemDelay;
// a negative one disables pacing.
func NewBatch(gen TagGenerator, applier Applier, cfg types.BatchConfig, logger *slog.Logger) *Batch {
	if cfg.ItemDelay == 0 {
		cfg.ItemDelay = DefaultItemDelay
	}
	return &Batch{
		generator: gen,
		applier:   applier,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "batch"),
		sleep:     sleepCtx,
	}
}

// Run processes items in order and never fails as a whole: per-item
// errors are counted and collected. Cancelling ctx stops the run between
// items: the item in progress still completes with an uncancelled context,
// and work already applied stands.
func (b *Batch) Run(ctx context.Context, items []types.Item, onProgress ProgressFunc) BatchResult {
	res := BatchResult{RunID: uuid.NewString()}
	log := b.logger.With(slog.String(logging.FieldRunID, res.RunID))
	log.Info("batch started", slog.Int("items", len(items)), slog.Bool("dry_run", b.DryRun))

	for i, item := range items {
		if ctx.Err() != nil {
			res.Stopped = true
			break
		}
		if i > 0 && b.cfg.ItemDelay > 0 {
			if err := b.sleep(ctx, b.cfg.ItemDelay); err != nil {
				res.Stopped = true
				break
			}
		}

		if onProgress != nil {
			onProgress(i+1, len(items), item)
		}
		b.runItem(context.WithoutCancel(ctx), log.With(slog.String(logging.FieldItemID, item.ID)), item, &res)
	}

	log.Info("batch finished",
		slog.Int("success", res.Success),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped),
		slog.Bool("stopped", res.Stopped))
	return res
}

func (b *Batch) runItem(ctx context.Context, log *slog.Logger, item types.Item, res *BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			b.fail(log, item, res, fmt.Errorf("panic: %v", r))
		}
	}()

	if b.cfg.SkipTagged && item.HasTags() {
		log.Debug("skipping already tagged item")
		res.Skipped++
		return
	}

	tags, err := b.generator.GenerateTags(ctx, item)
	if err != nil {
		b.fail(log, item, res, err)
		return
	}
	if len(tags) == 0 {
		log.Debug("no tags found")
		res.Skipped++
		return
	}

	if b.OnTags != nil {
		b.OnTags(item, tags)
	}
	if !b.DryRun && b.applier != nil {
		if err := b.applier.ApplyTags(ctx, item, tags); err != nil {
			b.fail(log, item, res, fmt.Errorf("applying tags: %w", err))
			return
		}
	}
	log.Debug("item tagged", slog.Int("tags", len(tags)))
	res.Success++
}

func (b *Batch) fail(log *slog.Logger, item types.Item, res *BatchResult, err error) {
	log.Error("item failed", logging.Error(err))
	res.Failed++
	res.Errors = append(res.Errors, ItemError{ItemID: item.ID, Title: item.Title, Err: err})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
