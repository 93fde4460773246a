// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil is the transport used by the tag sources: a GET/POST
// primitive returning status and body, with backoff on HTTP 429.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryBaseDelay is the first backoff after a 429 without a usable
// Retry-After header. Tests override it to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

// MaxRetryDelay caps any single backoff, including server-requested ones.
var MaxRetryDelay = 2 * time.Minute

const defaultMaxRetries = 5

// DoWithRetry sends req and retries while the server answers 429 Too Many
// Requests. Each wait honours a Retry-After header given in seconds,
// otherwise it is RetryBaseDelay doubled per attempt; both are capped at
// MaxRetryDelay. Request bodies are replayed through req.GetBody.
//
// maxRetries <= 0 means 5. After the last retry the final 429 response is
// returned unread so the caller can report it. Cancelling ctx during a wait
// returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, logger *slog.Logger) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if logger != nil {
			logger.Warn("rate limited by remote, backing off",
				slog.String("host", req.URL.Host),
				slog.Duration("backoff", wait),
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryDelay(retryAfter string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		return min(time.Duration(secs)*time.Second, MaxRetryDelay)
	}
	if attempt > 30 {
		return MaxRetryDelay
	}
	return min(RetryBaseDelay<<attempt, MaxRetryDelay)
}
