// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ai is the generative fallback tag source: it asks a chat model for
// keywords describing an item when the bibliographic sources come up empty.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/autotagger/internal/httputil"
	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/internal/ratelimit"
	"github.com/pdiddy/autotagger/pkg/types"
)

const (
	// maxLineLen rejects response lines that are prose rather than keywords.
	maxLineLen = 100
	maxTags    = 10
)

var (
	// ErrMissingAPIKey reports that the AI source is enabled without a credential.
	ErrMissingAPIKey = errors.New("AI API key not configured")

	// ErrEmptyResponse reports a reply with no text content.
	ErrEmptyResponse = errors.New("AI API returned no text")
)

// Backend abstracts the chat API so tests can supply a mock. Each
// implementation sends one user prompt and returns the model's text.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Waiter gates outgoing requests; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, source string) error
}

// Source generates candidate tags for an item through a Backend.
type Source struct {
	backend Backend
	apiKey  string
	limiter Waiter
	logger  *slog.Logger
}

// NewSource creates an AI source. apiKey is only checked for presence; the
// backend carries its own copy for authentication.
func NewSource(backend Backend, apiKey string, limiter Waiter, logger *slog.Logger) *Source {
	return &Source{
		backend: backend,
		apiKey:  apiKey,
		limiter: limiter,
		logger:  logging.NewComponentLogger(logger, "ai"),
	}
}

// Generate asks the model for 5-10 keywords describing item. Unlike the
// PubMed source it reports failures to the caller: a missing credential
// is ErrMissingAPIKey, and transport or parse errors are returned wrapped.
func (s *Source) Generate(ctx context.Context, item types.Item) ([]string, error) {
	if strings.TrimSpace(s.apiKey) == "" || s.backend == nil {
		return nil, ErrMissingAPIKey
	}

	prompt, err := RenderPrompt(item)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, ratelimit.SourceAI); err != nil {
			return nil, err
		}
	}

	text, err := s.backend.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating tags for %s: %w", item.ID, err)
	}

	tags := ParseTags(text)
	s.logger.Debug("ai tags generated",
		slog.String(logging.FieldItemID, item.ID),
		slog.Int("count", len(tags)))
	return tags, nil
}

// ParseTags splits a model reply into tag lines: trimmed, non-empty,
// shorter than 100 characters, at most 10.
func ParseTags(text string) []string {
	var tags []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || utf8.RuneCountInString(line) >= maxLineLen {
			continue
		}
		tags = append(tags, line)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// NewBackend builds the backend selected by cfg.Provider. A nil httpClient
// uses one with cfg.Timeout.
func NewBackend(cfg types.AIConfig, httpClient *http.Client, logger *slog.Logger) (Backend, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	transport := &httputil.Client{
		HTTP:       httpClient,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Logger:     logging.NewComponentLogger(logger, "ai"),
	}

	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, transport: transport}, nil
	case types.ProviderOpenAI:
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, transport: transport}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
