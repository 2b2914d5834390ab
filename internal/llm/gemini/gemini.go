package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"research/internal/llm"
)

// Client generates content through the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini completer.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Name() string { return "gemini" }

// Complete runs one GenerateContent call. A schema switches the response to
// JSON mode constrained by that schema.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Schema
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generation failed: %v", llm.ErrTransport, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini response has no candidates", llm.ErrPayloadShape)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	out := &llm.Response{
		Text:         text.String(),
		Model:        c.model,
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
