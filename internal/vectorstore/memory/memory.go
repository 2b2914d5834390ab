package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"research/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	ids       map[uint64]int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{ids: make(map[uint64]int)} }

// Init sets the vector size. Re-initializing with the same size keeps the data.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == dimension {
		return nil
	}
	s.dimension = dimension
	s.reset()
	return nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// Upsert stores normalized copies of the vectors. An existing ID is replaced.
func (s *Storage) Upsert(_ context.Context, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("store not initialized")
	}
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, p := range points {
		vec := normalized(p.Vector)
		if i, ok := s.ids[p.ID]; ok {
			s.vectors[i] = vec
			s.chunks[i] = p.Chunk
			continue
		}
		s.ids[p.ID] = len(s.vectors)
		s.vectors = append(s.vectors, vec)
		s.chunks = append(s.chunks, p.Chunk)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	query := normalized(vector)
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = dot(s.vectors[i], query)
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	// Stable so equal scores keep insertion order.
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Storage) Diagnose(_ context.Context) (domain.Diagnostics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Diagnostics{
		Backend:   "memory",
		Exists:    s.dimension > 0,
		Count:     len(s.vectors),
		Dimension: s.dimension,
	}, nil
}

func (s *Storage) reset() {
	s.ids = make(map[uint64]int)
	s.vectors = nil
	s.chunks = nil
}

func normalized(v []float64) []float64 {
	norm := math.Sqrt(dot(v, v))
	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
