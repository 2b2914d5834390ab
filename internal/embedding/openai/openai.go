package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ErrAuth is returned when the embeddings endpoint rejects the API key.
var ErrAuth = errors.New("embeddings authentication failed")

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	http  *resty.Client
	model string

	mu        sync.RWMutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
// 429 and 5xx responses are retried, honoring Retry-After when present.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetRetryAfter(retryAfter)
	h.AddRetryCondition(retryCondition)
	return &Client{http: h, model: cfg.Model}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the vector size, known after the first successful call.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Embed returns one embedding vector per text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{"model": c.model, "input": texts}
	// Ollama's native endpoint only accepts a single prompt.
	if len(texts) == 1 {
		body["prompt"] = texts[0]
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuth, resp.Status())
	case code >= 300:
		return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status())
	}

	vecs, err := parseEmbeddings(resp.Body(), len(texts))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(vecs[0])
	}
	c.mu.Unlock()
	return vecs, nil
}

func parseEmbeddings(payload []byte, want int) ([][]float64, error) {
	doc := gjson.ParseBytes(payload)
	// Try OpenAI-compatible response first
	if data := doc.Get("data"); data.IsArray() {
		type indexed struct {
			index int
			vec   []float64
		}
		items := make([]indexed, 0, want)
		for i, item := range data.Array() {
			idx := i
			if v := item.Get("index"); v.Exists() {
				idx = int(v.Int())
			}
			items = append(items, indexed{index: idx, vec: floats(item.Get("embedding"))})
		}
		sort.Slice(items, func(a, b int) bool { return items[a].index < items[b].index })
		out := make([][]float64, 0, len(items))
		for _, it := range items {
			out = append(out, it.vec)
		}
		if len(out) == want && len(out[0]) > 0 {
			return out, nil
		}
	}
	// Fallback to Ollama-native shape: { "embedding": [...] }
	if want == 1 {
		if v := floats(doc.Get("embedding")); len(v) > 0 {
			return [][]float64{v}, nil
		}
	}
	return nil, errors.New("no embedding returned")
}

func floats(r gjson.Result) []float64 {
	arr := r.Array()
	out := make([]float64, len(arr))
	for i, v := range arr {
		out[i] = v.Float()
	}
	return out
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfter respects a numeric Retry-After header; zero defers to backoff.
func retryAfter(_ *resty.Client, r *resty.Response) (time.Duration, error) {
	if r == nil {
		return 0, nil
	}
	if secs, err := strconv.Atoi(r.Header().Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, nil
}
