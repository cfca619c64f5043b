// Package search fetches external web results for recommendation queries.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/noise/internal/breaker"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// ErrNotConfigured is returned when no API key or engine id is set.
var ErrNotConfigured = errors.New("search not configured")

// Result is one external search hit.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Searcher runs a web search and returns at most limit results. Zero results
// is not an error.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

type Config struct {
	APIKey   string
	EngineID string
	Timeout  time.Duration
	// Endpoint overrides the API base URL; empty uses the public endpoint.
	Endpoint string
}

// GoogleClient searches through the Programmable Search JSON API.
type GoogleClient struct {
	svc      *customsearch.Service
	engineID string
	timeout  time.Duration
}

func NewGoogleClient(ctx context.Context, cfg Config) (*GoogleClient, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, ErrNotConfigured
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating search service: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &GoogleClient{svc: svc, engineID: cfg.EngineID, timeout: timeout}, nil
}

func (c *GoogleClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// The API caps num at 10.
	if limit < 1 {
		limit = 1
	} else if limit > 10 {
		limit = 10
	}

	resp, err := c.svc.Cse.List().Cx(c.engineID).Q(query).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, Result{Title: item.Title, Snippet: item.Snippet, URL: item.Link})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

type guarded struct {
	inner Searcher
	b     *breaker.Breaker
}

// WithBreaker wraps s so every search passes through b.
func WithBreaker(s Searcher, b *breaker.Breaker) Searcher {
	return &guarded{inner: s, b: b}
}

func (g *guarded) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return breaker.Do(ctx, g.b, func(ctx context.Context) ([]Result, error) {
		return g.inner.Search(ctx, query, limit)
	})
}
