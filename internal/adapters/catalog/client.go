// Package catalog talks to the remote content API that owns the software
// listings. Only the fields the sitemap needs are extracted; the provider's
// envelope shape is configurable because it has changed before.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"

	"github.com/lacs-team/appfun-api/config"
	"github.com/lacs-team/appfun-api/internal/core"
)

// maxResponseBytes bounds how much of a listing response is read.
const maxResponseBytes = 4 << 20

// Evaluator abstracts JMESPath extraction for testability.
type Evaluator interface {
	Evaluate(expr string, data any) (any, error)
}

type libEvaluator struct{}

func (libEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Client fetches software listings from the content API.
type Client struct {
	baseURL    string
	apiKey     string
	listExpr   string
	slugExpr   string
	updatedAt  string
	httpClient *http.Client
	eval       Evaluator
}

// ClientOptions groups constructor dependencies.
type ClientOptions struct {
	Config config.CatalogConfig

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Evaluator overrides the JMESPath engine (tests).
	Evaluator Evaluator
}

// NewClient constructs a content API client.
func NewClient(opts ClientOptions) (*Client, error) {
	cfg := opts.Config
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	for _, expr := range []string{cfg.ListExpr, cfg.SlugExpr} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile catalog expression %q: %w", expr, err)
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	eval := opts.Evaluator
	if eval == nil {
		eval = libEvaluator{}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		listExpr:   cfg.ListExpr,
		slugExpr:   cfg.SlugExpr,
		updatedAt:  cfg.UpdatedAtExpr,
		httpClient: httpClient,
		eval:       eval,
	}, nil
}

var _ core.CatalogClient = (*Client)(nil)

// ListEntries fetches the published software listings.
func (c *Client) ListEntries(ctx context.Context) ([]core.CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/software", nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog listings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog responded %d", resp.StatusCode)
	}

	var envelope any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	return c.extractEntries(envelope)
}

func (c *Client) extractEntries(envelope any) ([]core.CatalogEntry, error) {
	raw, err := c.eval.Evaluate(c.listExpr, envelope)
	if err != nil {
		return nil, fmt.Errorf("extract entry list: %w", err)
	}
	items, ok := raw.([]any)
	if !ok {
		// A null collection is an empty catalog, not an error.
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("entry list expression yielded %T, want array", raw)
	}

	entries := make([]core.CatalogEntry, 0, len(items))
	for _, item := range items {
		entry, ok := c.extractEntry(item)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// extractEntry pulls one listing out of its envelope item. Items without a
// usable slug are skipped rather than failing the whole listing.
func (c *Client) extractEntry(item any) (core.CatalogEntry, bool) {
	rawSlug, err := c.eval.Evaluate(c.slugExpr, item)
	if err != nil {
		return core.CatalogEntry{}, false
	}
	slug, ok := rawSlug.(string)
	if !ok || slug == "" {
		return core.CatalogEntry{}, false
	}

	entry := core.CatalogEntry{Slug: slug}
	if c.updatedAt != "" {
		if rawTS, err := c.eval.Evaluate(c.updatedAt, item); err == nil {
			if ts, ok := rawTS.(string); ok {
				if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
					entry.UpdatedAt = &parsed
				}
			}
		}
	}
	return entry, true
}
