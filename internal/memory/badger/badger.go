// Package badger persists conversation turns in an embedded Badger database
// through badgerhold.
package badger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"research/internal/domain"
)

// turnRecord is one stored message. Key format: "<user>/<thread>#<seq>".
type turnRecord struct {
	Key       string `badgerhold:"key"`
	ThreadKey string `badgerhold:"index"`
	Seq       uint64
	Role      string
	Content   string
	CreatedAt int64
}

type Store struct {
	store *badgerhold.Store
	// serializes sequence assignment; badger transactions alone would
	// surface concurrent appends as conflicts
	mu sync.Mutex
}

// Open opens or creates the database directory at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{store: store}, nil
}

// Append writes msgs in one transaction so a turn is stored whole or not at all.
func (s *Store) Append(ctx context.Context, thread domain.Thread, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := thread.Key()
	next, err := s.lastSeq(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().Unix()
	return s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, m := range msgs {
			next++
			created := m.CreatedAt
			if created == 0 {
				created = now
			}
			rec := turnRecord{
				Key:       fmt.Sprintf("%s#%020d", key, next),
				ThreadKey: key,
				Seq:       next,
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: created,
			}
			if err := s.store.TxUpsert(tx, rec.Key, rec); err != nil {
				return fmt.Errorf("failed to save turn: %w", err)
			}
		}
		return nil
	})
}

// Messages returns the thread's turns ordered by sequence.
func (s *Store) Messages(_ context.Context, thread domain.Thread) ([]domain.Message, error) {
	var recs []turnRecord
	query := badgerhold.Where("ThreadKey").Eq(thread.Key()).Index("ThreadKey").SortBy("Seq")
	if err := s.store.Find(&recs, query); err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	out := make([]domain.Message, len(recs))
	for i, r := range recs {
		out[i] = domain.Message{Role: r.Role, Content: r.Content, Seq: r.Seq, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Store) lastSeq(key string) (uint64, error) {
	var recs []turnRecord
	query := badgerhold.Where("ThreadKey").Eq(key).Index("ThreadKey").SortBy("Seq").Reverse().Limit(1)
	if err := s.store.Find(&recs, query); err != nil {
		return 0, fmt.Errorf("failed to read last turn: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	return recs[0].Seq, nil
}
