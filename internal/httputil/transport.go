// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 16 << 20

// Response is the status and full body of one HTTP exchange.
type Response struct {
	Status int
	Body   []byte
}

// StatusError reports a non-200 response. Sources treat it as a failure of
// the remote, not as "nothing found".
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.Status, e.URL, e.Body)
}

// Client bundles the settings shared by every request a source makes.
type Client struct {
	HTTP       *http.Client
	UserAgent  string
	MaxRetries int
	Logger     *slog.Logger
}

// Get issues a GET request and returns the response, or a *StatusError when
// the status is not 200.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	return c.do(ctx, req, headers)
}

// Post issues a POST request with body and returns the response, or a
// *StatusError when the status is not 200.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	return c.do(ctx, req, headers)
}

func (c *Client) do(ctx context.Context, req *http.Request, headers map[string]string) (Response, error) {
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := DoWithRetry(ctx, c.HTTP, req, c.MaxRetries, c.Logger)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("reading response from %s: %w", req.URL.Host, err)
	}

	out := Response{Status: resp.StatusCode, Body: body}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return out, &StatusError{URL: req.URL.Host + req.URL.Path, Status: resp.StatusCode, Body: snippet}
	}
	return out, nil
}
