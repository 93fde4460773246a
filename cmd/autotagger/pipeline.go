// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/autotagger/internal/ai"
	"github.com/pdiddy/autotagger/internal/library"
	"github.com/pdiddy/autotagger/internal/pubmed"
	"github.com/pdiddy/autotagger/internal/ratelimit"
	"github.com/pdiddy/autotagger/internal/tagcache"
	"github.com/pdiddy/autotagger/internal/tagger"
	"github.com/pdiddy/autotagger/internal/tagproc"
	"github.com/pdiddy/autotagger/pkg/types"
)

// pipeline is the set of stages one command works with. cache is nil when
// caching is disabled.
type pipeline struct {
	cfg        types.Config
	library    *library.Library
	cache      *tagcache.Cache
	cacheStore *tagcache.SQLiteStore
	generator  *tagger.Generator
}

// openLibrary opens the item database named by the configuration.
func openLibrary(cfg types.Config) (*library.Library, error) {
	return library.Open(cfg.Library.Path, logger)
}

// openCache opens the tag cache, or returns nils when it is disabled.
func openCache(cfg types.Config) (*tagcache.Cache, *tagcache.SQLiteStore, error) {
	if !cfg.Cache.Enabled {
		return nil, nil, nil
	}
	st, err := tagcache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	c, err := tagcache.New(st, cfg.Cache, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return c, st, nil
}

// newPipeline wires every stage from cfg: one rate limiter shared by both
// sources, the PubMed client, the AI source, the cache, the processor and
// the library.
func newPipeline(cfg types.Config) (*pipeline, error) {
	lib, err := openLibrary(cfg)
	if err != nil {
		return nil, err
	}
	p := &pipeline{cfg: cfg, library: lib}

	p.cache, p.cacheStore, err = openCache(cfg)
	if err != nil {
		lib.Close()
		return nil, err
	}

	limiter := ratelimit.New(map[string]time.Duration{
		ratelimit.SourcePubMed: cfg.PubMed.MinInterval,
		ratelimit.SourceAI:     cfg.AI.MinInterval,
	}, ratelimit.DefaultPubMedInterval)

	pm := pubmed.NewClient(cfg.PubMed, limiter, &http.Client{Timeout: cfg.PubMed.Timeout}, logger)

	backend, err := ai.NewBackend(cfg.AI, &http.Client{Timeout: cfg.AI.Timeout}, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	source := ai.NewSource(backend, cfg.AI.APIKey, limiter, logger)
	if cfg.Sources.UseAI && cfg.AI.APIKey == "" {
		logger.Warn("no AI API key configured; items without PubMed keywords will fail",
			slog.String("provider", string(cfg.AI.Provider)))
	}

	// An untyped nil keeps the generator's nil check meaningful.
	var cache tagger.Cache
	if p.cache != nil {
		cache = p.cache
	}

	p.generator = tagger.NewGenerator(pm, source, cache, tagproc.New(cfg.Processor), cfg.Sources, logger)
	return p, nil
}

// batch returns a batch runner that applies tags to the library.
func (p *pipeline) batch() *tagger.Batch {
	return tagger.NewBatch(p.generator, p.library, p.cfg.Batch, logger)
}

// Close releases both databases.
func (p *pipeline) Close() error {
	var errs []error
	if p.cacheStore != nil {
		errs = append(errs, p.cacheStore.Close())
	}
	errs = append(errs, p.library.Close())
	return errors.Join(errs...)
}
