package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
	"research/internal/memory/badger"
	"research/internal/memory/inmem"
)

var thread = domain.Thread{UserID: "web_user", ThreadID: "t1"}

func turn(role, text string) domain.Message { return domain.Message{Role: role, Content: text} }

func TestRetrieveWindowAndRelevantOlderTurns(t *testing.T) {
	ctx := context.Background()
	svc := NewService(inmem.New(), 2, 1)
	require.NoError(t, svc.Save(ctx, thread, turn(RoleUser, "Which optimizer does the transformer use?"), turn(RoleAssistant, "It uses Adam.")))
	require.NoError(t, svc.Save(ctx, thread, turn(RoleUser, "Bananas?"), turn(RoleAssistant, "Not in the document.")))
	require.NoError(t, svc.Save(ctx, thread, turn(RoleUser, "And the batch size?"), turn(RoleAssistant, "4096 tokens.")))

	out, err := svc.Retrieve(ctx, thread, "remind me about the optimizer")
	require.NoError(t, err)
	assert.Equal(t, "user: Which optimizer does the transformer use?\nuser: And the batch size?\nassistant: 4096 tokens.", out)
}

func TestRetrieveEmptyThread(t *testing.T) {
	out, err := NewService(inmem.New(), 4, 2).Retrieve(context.Background(), thread, "q")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSaveSkipsCancelledContext(t *testing.T) {
	store := inmem.New()
	svc := NewService(store, 4, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, svc.Save(ctx, thread, turn(RoleUser, "q"), turn(RoleAssistant, "a")))

	msgs, err := store.Messages(context.Background(), thread)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConcurrentSavesKeepTurnPairsTogether(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	svc := NewService(store, 100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("q%d", i)
			assert.NoError(t, svc.Save(ctx, thread, turn(RoleUser, q), turn(RoleAssistant, "a-"+q)))
		}(i)
	}
	wg.Wait()

	msgs, err := store.Messages(ctx, thread)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, RoleUser, msgs[i].Role)
		assert.Equal(t, "a-"+msgs[i].Content, msgs[i+1].Content)
		assert.Equal(t, uint64(i+1), msgs[i].Seq)
	}
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "memory")

	store, err := badger.Open(dir)
	require.NoError(t, err)
	other := domain.Thread{UserID: "web_user", ThreadID: "t2"}
	require.NoError(t, store.Append(ctx, thread, turn(RoleUser, "first"), turn(RoleAssistant, "second")))
	require.NoError(t, store.Append(ctx, other, turn(RoleUser, "elsewhere")))
	require.NoError(t, store.Append(ctx, thread, turn(RoleUser, "third")))
	require.NoError(t, store.Close())

	store, err = badger.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	msgs, err := store.Messages(ctx, thread)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	assert.Equal(t, uint64(3), msgs[2].Seq)

	msgs, err = store.Messages(ctx, other)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
