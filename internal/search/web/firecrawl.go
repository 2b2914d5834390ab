package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"research/internal/domain"
)

// ErrAuth is returned when the search provider rejects the API key.
var ErrAuth = errors.New("web search authentication failed")

// Firecrawl searches the web through the Firecrawl REST API.
type Firecrawl struct {
	http *resty.Client
}

func NewFirecrawl(baseURL, apiKey string, timeout time.Duration) *Firecrawl {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Firecrawl{http: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)}
}

func (f *Firecrawl) Name() string { return "firecrawl" }

func (f *Firecrawl) Search(ctx context.Context, query string, limit int) ([]domain.WebHit, error) {
	resp, err := f.http.R().SetContext(ctx).
		SetBody(map[string]any{"query": query, "limit": limit}).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("firecrawl search: %w", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuth, resp.Status())
	case code >= 300:
		return nil, fmt.Errorf("firecrawl search failed: %s", resp.Status())
	}
	doc := gjson.ParseBytes(resp.Body())
	if s := doc.Get("success"); s.Exists() && !s.Bool() {
		return nil, fmt.Errorf("firecrawl search failed: %s", doc.Get("error").String())
	}
	items := doc.Get("data").Array()
	hits := make([]domain.WebHit, 0, len(items))
	for _, it := range items {
		snippet := it.Get("description").String()
		if snippet == "" {
			snippet = it.Get("markdown").String()
		}
		hits = append(hits, domain.WebHit{
			Title:   it.Get("title").String(),
			URL:     it.Get("url").String(),
			Snippet: snippet,
		})
	}
	return hits, nil
}
