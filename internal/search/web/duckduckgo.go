package web

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"research/internal/domain"
)

// DuckDuckGo scrapes the keyless HTML endpoint.
type DuckDuckGo struct {
	http *resty.Client
}

func NewDuckDuckGo(baseURL string, timeout time.Duration) *DuckDuckGo {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &DuckDuckGo{http: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; research-assistant/1.0)")}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]domain.WebHit, error) {
	resp, err := d.http.R().SetContext(ctx).
		SetFormData(map[string]string{"q": query}).
		Post("/html/")
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("duckduckgo search failed: %s", resp.Status())
	}
	return parseResults(resp.Body(), limit)
}

func parseResults(body []byte, limit int) ([]domain.WebHit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}
	var hits []domain.WebHit
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if limit > 0 && len(hits) >= limit {
			return false
		}
		link := sel.Find("a.result__a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if title == "" || href == "" {
			return true
		}
		hits = append(hits, domain.WebHit{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return true
	})
	return hits, nil
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
