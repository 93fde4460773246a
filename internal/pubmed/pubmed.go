// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed resolves bibliographic items to PubMed records through the
// NCBI E-utilities API and extracts their author keywords and MeSH headings
// as candidate tags.
package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/autotagger/internal/httputil"
	"github.com/pdiddy/autotagger/internal/logging"
	"github.com/pdiddy/autotagger/internal/ratelimit"
	"github.com/pdiddy/autotagger/pkg/types"
)

// eutilsBase is the E-utilities endpoint. Declared as a var so tests can
// substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

const (
	defaultTool        = "autotagger"
	defaultMaxKeywords = 10
)

// ErrNotFound means a search returned no PubMed record.
var ErrNotFound = errors.New("no PubMed record found")

// Waiter gates outgoing requests; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, source string) error
}

// Client talks to E-utilities. It is safe for concurrent use when its Waiter is.
type Client struct {
	transport *httputil.Client
	limiter   Waiter
	cfg       types.PubMedConfig
	logger    *slog.Logger
}

// NewClient creates a PubMed client. A nil httpClient uses one with
// cfg.Timeout; a nil logger discards output.
func NewClient(cfg types.PubMedConfig, limiter Waiter, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Tool == "" {
		cfg.Tool = defaultTool
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = defaultMaxKeywords
	}
	logger = logging.NewComponentLogger(logger, "pubmed")
	return &Client{
		transport: &httputil.Client{
			HTTP:       httpClient,
			UserAgent:  cfg.UserAgent,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		},
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Resolve finds the item's PubMed record and returns its keywords, earliest
// discovered first. It never fails: errors are logged and yield an empty
// result, since PubMed is one source among several.
func (c *Client) Resolve(ctx context.Context, item types.Item) []string {
	log := c.logger.With(slog.String(logging.FieldItemID, item.ID))

	pmid, err := c.FindPMID(ctx, item)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug("no pubmed record for item")
		} else {
			log.Warn("pubmed lookup failed", logging.Error(err))
		}
		return nil
	}

	record, err := c.FetchRecord(ctx, pmid)
	if err != nil {
		log.Warn("pubmed fetch failed", slog.String("pmid", pmid), logging.Error(err))
		return nil
	}

	keywords, err := ExtractKeywords(record, c.cfg.MaxKeywords)
	if err != nil {
		log.Warn("pubmed record unreadable", slog.String("pmid", pmid), logging.Error(err))
		return nil
	}

	log.Debug("pubmed keywords extracted", slog.String("pmid", pmid), slog.Int("count", len(keywords)))
	return keywords
}

// FindPMID walks the identifier chain: the PMID hint from the item's extra
// field, then a DOI search, then a title search narrowed by first author
// and year. The first step that yields an identifier wins; a failing step
// falls through to the next one.
func (c *Client) FindPMID(ctx context.Context, item types.Item) (string, error) {
	pmid := item.PMIDHint
	if pmid == "" {
		pmid = types.ParsePMID(item.Extra)
	}
	if pmid != "" {
		return pmid, nil
	}

	var lastErr error
	if doi := strings.TrimSpace(item.DOI); doi != "" {
		id, err := c.search(ctx, DOITerm(doi))
		if err == nil {
			return id, nil
		}
		c.logger.Debug("doi search missed, falling back to title",
			slog.String(logging.FieldItemID, item.ID), logging.Error(err))
		lastErr = err
	}

	if term := TitleTerm(item); term != "" {
		id, err := c.search(ctx, term)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return "", lastErr
}

// DOITerm builds the esearch term matching a record's DOI field.
func DOITerm(doi string) string {
	return doi + "[DOI]"
}

// TitleTerm builds the esearch term for an exact-title search, narrowed by
// the first author's last name and the four-digit publication year when
// the item has them. It returns "" for items without a title.
func TitleTerm(item types.Item) string {
	title := strings.Join(strings.Fields(strings.ReplaceAll(item.Title, `"`, "")), " ")
	if title == "" {
		return ""
	}

	parts := []string{`"` + title + `"[Title]`}
	if author, ok := item.FirstAuthor(); ok && strings.TrimSpace(author.LastName) != "" {
		parts = append(parts, strings.TrimSpace(author.LastName)+"[Author]")
	}
	if year := item.Year(); year != "" {
		parts = append(parts, year+"[PDAT]")
	}
	return strings.Join(parts, " AND ")
}

// esearchResponse captures the fields we need from an esearch JSON reply.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// search runs one esearch query and returns the first PMID.
func (c *Client) search(ctx context.Context, term string) (string, error) {
	params := c.baseParams()
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", "1")

	resp, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return "", err
	}

	var es esearchResponse
	if err := json.Unmarshal(resp.Body, &es); err != nil {
		return "", fmt.Errorf("parsing esearch response: %w", err)
	}
	if len(es.Result.IDList) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, term)
	}
	return es.Result.IDList[0], nil
}

// FetchRecord retrieves the full PubMed XML record for pmid.
func (c *Client) FetchRecord(ctx context.Context, pmid string) ([]byte, error) {
	params := c.baseParams()
	params.Set("id", pmid)
	params.Set("retmode", "xml")

	resp, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) baseParams() url.Values {
	params := url.Values{
		"db":   {"pubmed"},
		"tool": {c.cfg.Tool},
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	return params
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (httputil.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, ratelimit.SourcePubMed); err != nil {
			return httputil.Response{}, err
		}
	}
	resp, err := c.transport.Get(ctx, eutilsBase+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return resp, fmt.Errorf("PubMed %s: %w", strings.TrimSuffix(endpoint, ".fcgi"), err)
	}
	return resp, nil
}
