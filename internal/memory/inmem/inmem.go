package inmem

import (
	"context"
	"sync"
	"time"

	"research/internal/domain"
)

// Store keeps conversation turns in process memory.
type Store struct {
	mu      sync.RWMutex
	threads map[string][]domain.Message
}

func New() *Store {
	return &Store{threads: make(map[string][]domain.Message)}
}

// Append adds msgs to the thread in order, assigning sequence numbers.
func (s *Store) Append(_ context.Context, thread domain.Thread, msgs ...domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := thread.Key()
	existing := s.threads[key]
	now := time.Now().Unix()
	for _, m := range msgs {
		m.Seq = uint64(len(existing)) + 1
		if m.CreatedAt == 0 {
			m.CreatedAt = now
		}
		existing = append(existing, m)
	}
	s.threads[key] = existing
	return nil
}

func (s *Store) Messages(_ context.Context, thread domain.Thread) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.threads[thread.Key()]...), nil
}

func (s *Store) Close() error { return nil }
