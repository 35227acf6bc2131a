package search

import (
	"context"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/comigor/assistant-go/internal/config"
	"github.com/comigor/assistant-go/internal/fault"
	"github.com/comigor/assistant-go/internal/logger"
)

// GoogleClient queries the Google Custom Search JSON API.
type GoogleClient struct {
	svc     *customsearch.Service
	initErr error
	cx      string
	num     int64
}

// NewGoogleClient creates a GoogleClient. Missing credentials are not an error
// here; the API rejects the first query instead.
func NewGoogleClient(ctx context.Context, cfg config.SearchConfig) *GoogleClient {
	num := int64(cfg.NumResults)
	if num <= 0 {
		num = 3
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		logger.L.Warn("custom search client init failed", "error", err)
	}
	return &GoogleClient{svc: svc, initErr: err, cx: cfg.EngineID, num: num}
}

// Search runs query and returns at most the configured number of items.
func (c *GoogleClient) Search(ctx context.Context, query string) Results {
	if c.initErr != nil {
		return Failed(fault.External("search", c.initErr))
	}

	res, err := c.svc.Cse.List().Q(query).Cx(c.cx).Num(c.num).Context(ctx).Do()
	if err != nil {
		logger.L.Error("web search failed", "error", err)
		return Failed(fault.External("search", err))
	}

	items := make([]Item, 0, len(res.Items))
	for _, r := range res.Items {
		if r == nil {
			continue
		}
		items = append(items, Item{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	if int64(len(items)) > c.num {
		items = items[:c.num]
	}
	logger.L.Debug("web search done", "query", query, "items", len(items))
	return NewResults(items)
}

var _ Searcher = (*GoogleClient)(nil)
