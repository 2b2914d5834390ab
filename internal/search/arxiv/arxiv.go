// Package arxiv queries the arXiv export API and decodes its Atom feed.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"research/internal/domain"
)

var ErrNoKeywords = errors.New("arxiv: no keywords to search")

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{http: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/atom+xml")}
}

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Search issues all:kw1 AND all:kw2 ... ordered by relevance.
func (c *Client) Search(ctx context.Context, keywords []string, limit int) ([]domain.Paper, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	if limit <= 0 {
		limit = 5
	}
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_query": Query(keywords),
			"start":        "0",
			"max_results":  strconv.Itoa(limit),
			"sortBy":       "relevance",
		}).
		Get("/api/query")
	if err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("arxiv query failed: %s", resp.Status())
	}
	var f feed
	if err := xml.Unmarshal(resp.Body(), &f); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}
	papers := make([]domain.Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		p := domain.Paper{
			ID:        e.ID[strings.LastIndex(e.ID, "/")+1:],
			Title:     collapse(e.Title),
			Summary:   collapse(e.Summary),
			URL:       e.ID,
			Published: e.Published,
		}
		for _, a := range e.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Query builds the search_query expression.
func Query(keywords []string) string {
	parts := make([]string, len(keywords))
	for i, k := range keywords {
		parts[i] = "all:" + k
	}
	return strings.Join(parts, " AND ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
