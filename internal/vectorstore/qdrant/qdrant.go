package qdrant

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

// ErrAuth is returned when Qdrant rejects the API key.
var ErrAuth = errors.New("qdrant authentication failed")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	http       *resty.Client
	collection string
	dimension  int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	h := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetPathParam("collection", cfg.Collection)
	if cfg.APIKey != "" {
		h.SetHeader("api-key", cfg.APIKey)
	}
	return &Storage{http: h, collection: cfg.Collection}
}

// Init creates the collection when it does not exist yet.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	resp, err := s.http.R().SetContext(ctx).Get("/collections/{collection}")
	if err != nil {
		return fmt.Errorf("qdrant get collection: %w", err)
	}
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	if resp.StatusCode() != http.StatusNotFound {
		return s.statusError("GET collection", resp)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	resp, err = s.http.R().SetContext(ctx).SetBody(body).Put("/collections/{collection}")
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	if resp.IsError() {
		return s.statusError("PUT collection", resp)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *Storage) Count(ctx context.Context) (int, error) {
	resp, err := s.http.R().SetContext(ctx).
		SetBody(map[string]any{"exact": true}).
		Post("/collections/{collection}/points/count")
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	if resp.IsError() {
		return 0, s.statusError("POST count", resp)
	}
	return int(gjson.GetBytes(resp.Body(), "result.count").Int()), nil
}

func (s *Storage) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, len(points))
	for i, p := range points {
		body[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"text":        p.Chunk.Text,
				"page_number": p.Chunk.Page,
				"chunk_index": p.Chunk.Index,
				"source_file": p.Chunk.SourceFile,
				"document_id": p.Chunk.DocumentID,
				"chunk_id":    p.Chunk.ChunkID,
			},
		}
	}
	resp, err := s.http.R().SetContext(ctx).
		SetQueryParam("wait", "true").
		SetBody(map[string]any{"points": body}).
		Put("/collections/{collection}/points")
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	if resp.IsError() {
		return s.statusError("PUT points", resp)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	resp, err := s.http.R().SetContext(ctx).
		SetBody(map[string]any{
			"vector":       vector,
			"limit":        topK,
			"with_payload": true,
		}).
		Post("/collections/{collection}/points/search")
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	if resp.IsError() {
		return nil, s.statusError("POST search", resp)
	}
	hits := gjson.GetBytes(resp.Body(), "result").Array()
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		p := h.Get("payload")
		results = append(results, domain.SearchResult{
			Score: h.Get("score").Float(),
			Chunk: domain.Chunk{
				DocumentID: p.Get("document_id").String(),
				ChunkID:    p.Get("chunk_id").String(),
				Text:       p.Get("text").String(),
				Index:      int(p.Get("chunk_index").Int()),
				Page:       int(p.Get("page_number").Int()),
				SourceFile: p.Get("source_file").String(),
			},
		})
	}
	return results, nil
}

// Clear drops the collection; the next Init recreates it.
func (s *Storage) Clear(ctx context.Context) error {
	resp, err := s.http.R().SetContext(ctx).Delete("/collections/{collection}")
	if err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return s.statusError("DELETE collection", resp)
	}
	return nil
}

func (s *Storage) Diagnose(ctx context.Context) (domain.Diagnostics, error) {
	d := domain.Diagnostics{Backend: "qdrant", Collection: s.collection}
	resp, err := s.http.R().SetContext(ctx).Get("/collections/{collection}")
	if err != nil {
		return d, fmt.Errorf("qdrant get collection: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return d, nil
	}
	if resp.IsError() {
		return d, s.statusError("GET collection", resp)
	}
	doc := gjson.ParseBytes(resp.Body())
	d.Exists = true
	d.Count = int(doc.Get("result.points_count").Int())
	d.Dimension = int(doc.Get("result.config.params.vectors.size").Int())
	return d, nil
}

func (s *Storage) statusError(op string, resp *resty.Response) error {
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return fmt.Errorf("%w: %s %s", ErrAuth, op, resp.Status())
	}
	return fmt.Errorf("qdrant %s %s failed: %s", op, s.collection, resp.Status())
}
