// Package memory keeps condensed conversation turns per thread and renders
// them back as context for the memory evidence source.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"research/internal/domain"
	"research/internal/lexical"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Service wraps a MemoryStore with per-thread write ordering and
// query-aware retrieval.
type Service struct {
	store    domain.MemoryStore
	window   int
	relevant int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService returns a Service that renders the last window turns plus up to
// relevant older turns that share words with the query.
func NewService(store domain.MemoryStore, window, relevant int) *Service {
	if window <= 0 {
		window = 6
	}
	if relevant < 0 {
		relevant = 0
	}
	return &Service{store: store, window: window, relevant: relevant, locks: make(map[string]*sync.Mutex)}
}

// Save appends msgs to the thread. Writes on one thread are serialized and a
// cancelled ctx commits nothing.
func (s *Service) Save(ctx context.Context, thread domain.Thread, msgs ...domain.Message) error {
	lock := s.threadLock(thread.Key())
	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.Append(ctx, thread, msgs...)
}

// Retrieve renders prior turns of the thread as "role: text" lines, oldest
// first. It returns "" for a thread without history.
func (s *Service) Retrieve(ctx context.Context, thread domain.Thread, query string) (string, error) {
	msgs, err := s.store.Messages(ctx, thread)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", nil
	}
	cut := len(msgs) - s.window
	if cut < 0 {
		cut = 0
	}
	picked := s.rankOlder(msgs[:cut], query)
	picked = append(picked, msgs[cut:]...)

	lines := make([]string, 0, len(picked))
	for _, m := range picked {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) Close() error { return s.store.Close() }

func (s *Service) rankOlder(older []domain.Message, query string) []domain.Message {
	if s.relevant == 0 || len(older) == 0 {
		return nil
	}
	qset := make(map[string]struct{})
	for _, t := range lexical.ContentTokens(query) {
		qset[t] = struct{}{}
	}
	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, m := range older {
		if sc := lexical.Ochiai(qset, m.Content); sc > 0 {
			hits = append(hits, scored{i, sc})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > s.relevant {
		hits = hits[:s.relevant]
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].idx < hits[b].idx })
	out := make([]domain.Message, len(hits))
	for i, h := range hits {
		out[i] = older[h.idx]
	}
	return out
}

func (s *Service) threadLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
