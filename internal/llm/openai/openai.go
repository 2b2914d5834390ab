package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"research/internal/llm"
)

// Client talks to an OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, local gateways).
type Client struct {
	http       *resty.Client
	model      string
	openRouter bool
}

// Config configures the chat completions client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	OpenRouter bool
	Referer    string
	AppName    string
}

// NewClient creates a chat completions client. It does not retry; retry
// policy belongs to the caller.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey)
	if cfg.OpenRouter {
		if cfg.Referer != "" {
			h.SetHeader("HTTP-Referer", cfg.Referer)
		}
		if cfg.AppName != "" {
			h.SetHeader("X-Title", cfg.AppName)
		}
	}
	return &Client{http: h, model: cfg.Model, openRouter: cfg.OpenRouter}
}

// Name returns the identifier of this provider.
func (c *Client) Name() string {
	if c.openRouter {
		return "openrouter"
	}
	return "openai"
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})
	body := map[string]any{
		"model":       c.model,
		"temperature": req.Temperature,
		"messages":    messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   name,
				"schema": req.Schema,
				"strict": req.Strict,
			},
		}
	}
	if c.openRouter {
		body["usage"] = map[string]any{"include": true}
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", llm.ErrAuth, resp.Status())
	case code >= 300:
		return nil, fmt.Errorf("%w: chat completions failed: %s", llm.ErrTransport, resp.Status())
	}
	return parseResponse(resp.Body())
}

func parseResponse(payload []byte) (*llm.Response, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: response body is not JSON", llm.ErrPayloadShape)
	}
	doc := gjson.ParseBytes(payload)
	content := doc.Get("choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		return nil, fmt.Errorf("%w: missing choices[0].message.content", llm.ErrPayloadShape)
	}
	usage := doc.Get("usage")
	return &llm.Response{
		Text:         content.String(),
		Model:        doc.Get("model").String(),
		FinishReason: doc.Get("choices.0.finish_reason").String(),
		Usage: llm.Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
			Cost:             usage.Get("cost").Float(),
		},
	}, nil
}
