package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder produces embeddings with a Gemini embedding model.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewEmbedder(ctx context.Context, apiKey, model string, dim int) (*Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &Embedder{client: client, model: model, dimension: dim}, nil
}

func (e *Embedder) Name() string   { return "gemini" }
func (e *Embedder) Dimension() int { return e.dimension }

// Embed sends all texts in one EmbedContent call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dim := int32(e.dimension)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings from API", len(texts))
	}
	out := make([][]float64, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) != e.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch at %d: expected %d", i, e.dimension)
		}
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}
