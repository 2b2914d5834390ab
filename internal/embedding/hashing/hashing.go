package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"

	"research/internal/lexical"
)

// Embedder maps stopword-filtered tokens into a fixed number of signed
// buckets (the hashing trick) with sublinear term frequency weights.
// Unlike a fitted TF-IDF vocabulary it needs no corpus, so vectors for
// documents ingested at different times stay comparable.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder producing vectors of size dim.
func NewEmbedder(dim int) (*Embedder, error) {
	if dim <= 0 {
		return nil, errors.New("hashing embedder needs a positive dimension")
	}
	return &Embedder{dimension: dim}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes one vector per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float64 {
	vec := make([]float64, e.dimension)
	tf := make(map[string]int)
	for _, tok := range lexical.ContentTokens(text) {
		tf[tok]++
	}
	if len(tf) == 0 {
		return vec
	}
	for tok, count := range tf {
		idx, sign := e.bucket(tok)
		vec[idx] += sign * (1 + math.Log(float64(count)))
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func (e *Embedder) bucket(tok string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}
