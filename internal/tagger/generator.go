// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tagger orchestrates tag generation: per item it consults the
// cache, PubMed and the AI fallback, processes the candidates and writes
// the result back; across items it runs batches with skip, failure and
// stop accounting.
package tagger

import (
	"context"
	"log/slog"

	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/pkg/types"
)

// Candidate sources.
const (
	SourcePubMed = "pubmed"
	SourceAI     = "ai"
)

// KeywordSource is the primary metadata source. It never fails; misses and
// errors both yield an empty result.
type KeywordSource interface {
	Resolve(ctx context.Context, item types.Item) []string
}

// TagSource is the generative fallback. It reports failures.
type TagSource interface {
	Generate(ctx context.Context, item types.Item) ([]string, error)
}

// Cache is the advisory tag cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, tags []string)
}

// Processor turns candidates into the final tag set.
type Processor interface {
	Process(raw []string) []string
}

// Candidate is one raw tag and the source that proposed it.
type Candidate struct {
	Tag    string `json:"tag" yaml:"tag"`
	Source string `json:"source" yaml:"source"`
}

// Result is the outcome of generating tags for one item.
type Result struct {
	Tags       []string
	Candidates []Candidate
	Cached     bool
}

// Generator runs the single-item pipeline. Any of PubMed, AI and Cache may
// be nil, which disables that stage.
type Generator struct {
	PubMed    KeywordSource
	AI        TagSource
	Cache     Cache
	Processor Processor

	// Supplement consults the AI source even when PubMed found keywords.
	Supplement bool

	Logger *slog.Logger
}

// NewGenerator wires a generator. Sources switched off in cfg are left nil.
func NewGenerator(pubmed KeywordSource, ai TagSource, cache Cache, proc Processor, cfg types.SourcesConfig, logger *slog.Logger) *Generator {
	g := &Generator{
		Cache:      cache,
		Processor:  proc,
		Supplement: cfg.SupplementAI,
		Logger:     logging.NewComponentLogger(logger, "tagger"),
	}
	if cfg.UsePubMed {
		g.PubMed = pubmed
	}
	if cfg.UseAI {
		g.AI = ai
	}
	return g
}

// GenerateTags returns the processed tag set for item, which may be empty.
// The only error is an AI failure when no other source produced candidates.
func (g *Generator) GenerateTags(ctx context.Context, item types.Item) ([]string, error) {
	res, err := g.Generate(ctx, item)
	return res.Tags, err
}

// Generate is GenerateTags with the candidates and cache status exposed.
func (g *Generator) Generate(ctx context.Context, item types.Item) (Result, error) {
	log := g.logger().With(slog.String(logging.FieldItemID, item.ID))

	key := item.CacheKey()
	if key == "" {
		log.Debug("item has neither DOI nor title, nothing to tag")
		return Result{}, nil
	}

	if g.Cache != nil {
		if tags, ok := g.Cache.Get(ctx, key); ok {
			log.Debug("cache hit", slog.String(logging.FieldCacheKey, key))
			return Result{Tags: tags, Cached: true}, nil
		}
	}

	var candidates []Candidate
	seen := make(map[string]bool)
	merge := func(tags []string, source string) {
		for _, t := range tags {
			if seen[t] {
				continue
			}
			seen[t] = true
			candidates = append(candidates, Candidate{Tag: t, Source: source})
		}
	}

	if g.PubMed != nil {
		merge(g.PubMed.Resolve(ctx, item), SourcePubMed)
	}

	if g.AI != nil && (len(candidates) == 0 || g.Supplement) {
		tags, err := g.AI.Generate(ctx, item)
		switch {
		case err != nil && len(candidates) == 0:
			return Result{}, err
		case err != nil:
			log.Warn("ai supplement failed, keeping pubmed keywords", logging.Error(err))
		default:
			merge(tags, SourceAI)
		}
	}

	raw := make([]string, len(candidates))
	for i, c := range candidates {
		raw[i] = c.Tag
	}
	tags := raw
	if g.Processor != nil {
		tags = g.Processor.Process(raw)
	}

	if len(tags) > 0 && g.Cache != nil {
		g.Cache.Set(ctx, key, tags)
	}

	log.Debug("tags generated",
		slog.Int("candidates", len(candidates)),
		slog.Int("tags", len(tags)))
	return Result{Tags: tags, Candidates: candidates}, nil
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return logging.NewNop()
	}
	return g.Logger
}
