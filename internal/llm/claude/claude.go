package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"research/internal/llm"
)

// Client generates messages through the Anthropic API. The Messages API has
// no JSON schema mode, so the schema is appended to the system prompt.
type Client struct {
	client anthropic.Client
	model  string
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	system := req.System
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object and nothing else. It must match this JSON schema:\n" + string(schema)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %v", llm.ErrAuth, err)
		}
		return nil, fmt.Errorf("%w: claude call failed: %v", llm.ErrTransport, err)
	}
	if msg == nil || len(msg.Content) == 0 {
		return nil, fmt.Errorf("%w: claude response has no content", llm.ErrPayloadShape)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &llm.Response{
		Text:         stripFence(text.String()),
		Model:        string(msg.Model),
		FinishReason: string(msg.StopReason),
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// stripFence removes a surrounding ```json fence if the model added one.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
