package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
	"research/internal/embedding/hashing"
	"research/internal/generation"
	"research/internal/llm"
	"research/internal/llm/mock"
	"research/internal/memory"
	"research/internal/memory/inmem"
	"research/internal/summarizer"
	vsmemory "research/internal/vectorstore/memory"
)

const ragReply = `{"status":"OK","source_used":"NONE","answer":"Adam.","citations":[{"label":"Paper §3","locator":"page 4"}],"confidence":0.8,"missing":[]}`

var fastRetry = RetryPolicy{MaxRetries: 2, Base: time.Millisecond, Max: 2 * time.Millisecond}

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func indexedStore(t *testing.T, e domain.Embedder, texts ...string) domain.VectorStore {
	t.Helper()
	ctx := context.Background()
	s := vsmemory.NewStorage()
	require.NoError(t, s.Init(ctx, e.Dimension()))
	vecs, err := e.Embed(ctx, texts)
	require.NoError(t, err)
	points := make([]domain.Point, len(texts))
	for i, text := range texts {
		points[i] = domain.Point{ID: uint64(i), Vector: vecs[i], Chunk: domain.Chunk{Text: text, Page: 4, SourceFile: "paper.pdf", Index: i}}
	}
	require.NoError(t, s.Upsert(ctx, points))
	return s
}

func TestRAGGroundsOnRetrievedChunks(t *testing.T) {
	e, err := hashing.NewEmbedder(128)
	require.NoError(t, err)
	store := indexedStore(t, e, "We train the model with the Adam optimizer.", "Bananas are yellow.")
	c := mock.New()
	c.Fallback = mock.Reply{Text: ragReply}

	out := decode(t, NewRAG(generation.NewGenerator(c), fastRetry, e, store, 1).Retrieve(context.Background(), Query{Text: "Which optimizer?"}))
	assert.Equal(t, "OK", out["status"])
	assert.Equal(t, "RAG", out["source_used"])
	assert.Contains(t, out["context"], "[paper.pdf, page 4, chunk 0]")
	assert.Contains(t, c.Calls()[0].Prompt, "Adam optimizer")
}

func TestRAGEmptyIndexIsInsufficientWithoutModelCall(t *testing.T) {
	e, err := hashing.NewEmbedder(16)
	require.NoError(t, err)
	store := vsmemory.NewStorage()
	require.NoError(t, store.Init(context.Background(), 16))
	c := mock.New()

	out := decode(t, NewRAG(generation.NewGenerator(c), fastRetry, e, store, 3).Retrieve(context.Background(), Query{Text: "q"}))
	assert.Equal(t, "INSUFFICIENT_CONTEXT", out["status"])
	assert.Empty(t, c.Calls())
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string   { return "failing" }
func (failingEmbedder) Dimension() int { return 4 }
func (failingEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("embedding service down")
}

func TestRAGEmbedFailureIsErrorRecord(t *testing.T) {
	out := decode(t, NewRAG(generation.NewGenerator(mock.New()), fastRetry, failingEmbedder{}, vsmemory.NewStorage(), 3).
		Retrieve(context.Background(), Query{Text: "q"}))
	assert.Equal(t, "ERROR", out["status"])
	assert.Equal(t, ErrTypeRetrieval, out["error_type"])
	assert.Contains(t, out["error"], "embedding service down")
	assert.Equal(t, "", out["answer"])
}

type panickingEmbedder struct{ failingEmbedder }

func (panickingEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	panic("index out of range")
}

func TestRetrieveRecoversPanic(t *testing.T) {
	var out string
	require.NotPanics(t, func() {
		out = NewRAG(generation.NewGenerator(mock.New()), fastRetry, panickingEmbedder{}, vsmemory.NewStorage(), 3).
			Retrieve(context.Background(), Query{Text: "q"})
	})
	m := decode(t, out)
	assert.Equal(t, "ERROR", m["status"])
	assert.Equal(t, "RAG", m["source_used"])
	assert.Equal(t, ErrTypePanic, m["error_type"])
	assert.Contains(t, m["error"], "index out of range")
}

type flakyCompleter struct {
	failures int32
	calls    int32
	err      error
}

func (f *flakyCompleter) Name() string { return "flaky" }
func (f *flakyCompleter) Complete(context.Context, llm.Request) (*llm.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, f.err
	}
	return &llm.Response{Text: ragReply}, nil
}

func memoryWith(t *testing.T, th domain.Thread) *memory.Service {
	svc := memory.NewService(inmem.New(), 4, 0)
	require.NoError(t, svc.Save(context.Background(), th,
		domain.Message{Role: memory.RoleUser, Content: "Which optimizer?"},
		domain.Message{Role: memory.RoleAssistant, Content: "Adam."}))
	return svc
}

func TestTransportErrorsAreRetried(t *testing.T) {
	th := domain.Thread{UserID: "u", ThreadID: "t"}
	f := &flakyCompleter{failures: 2, err: fmt.Errorf("%w: 503", llm.ErrTransport)}

	out := decode(t, NewMemory(generation.NewGenerator(f), fastRetry, memoryWith(t, th)).Retrieve(context.Background(), Query{Text: "optimizer?", Thread: th}))
	assert.Equal(t, "OK", out["status"])
	assert.Equal(t, "MEMORY", out["source_used"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.calls))
}

func TestDecodeErrorsAreNotRetried(t *testing.T) {
	th := domain.Thread{UserID: "u", ThreadID: "t"}
	c := mock.New()
	c.Fallback = mock.Reply{Text: "I think it is Adam"}

	out := decode(t, NewMemory(generation.NewGenerator(c), fastRetry, memoryWith(t, th)).Retrieve(context.Background(), Query{Text: "q", Thread: th}))
	assert.Equal(t, "ERROR", out["status"])
	assert.Equal(t, ErrTypeDecode, out["error_type"])
	assert.Len(t, c.Calls(), 1)
}

func TestAuthErrorsAreNotRetried(t *testing.T) {
	th := domain.Thread{UserID: "u", ThreadID: "t"}
	f := &flakyCompleter{failures: 5, err: llm.ErrAuth}

	out := decode(t, NewMemory(generation.NewGenerator(f), fastRetry, memoryWith(t, th)).Retrieve(context.Background(), Query{Text: "q", Thread: th}))
	assert.Equal(t, ErrTypeAuth, out["error_type"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestMemoryWithoutHistoryIsInsufficient(t *testing.T) {
	out := decode(t, NewMemory(generation.NewGenerator(mock.New()), fastRetry, memory.NewService(inmem.New(), 4, 0)).
		Retrieve(context.Background(), Query{Text: "q", Thread: domain.Thread{UserID: "u", ThreadID: "new"}}))
	assert.Equal(t, "INSUFFICIENT_CONTEXT", out["status"])
	assert.Equal(t, "MEMORY", out["source_used"])
}

type fakeWeb struct {
	hits []domain.WebHit
	err  error
}

func (f fakeWeb) Name() string { return "fake" }
func (f fakeWeb) Search(context.Context, string, int) ([]domain.WebHit, error) {
	return f.hits, f.err
}

func TestWebKeepsSearchResults(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: ragReply}
	web := fakeWeb{hits: []domain.WebHit{{Title: "Adam", URL: "https://arxiv.org/abs/1412.6980", Snippet: "An optimizer."}}}

	out := decode(t, NewWeb(generation.NewGenerator(c), fastRetry, web, 3).Retrieve(context.Background(), Query{Text: "adam"}))
	assert.Equal(t, "WEB", out["source_used"])
	results, ok := out["search_results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 1)
	assert.Contains(t, c.Calls()[0].Prompt, "URL: https://arxiv.org/abs/1412.6980")
}

func TestWebSearchFailure(t *testing.T) {
	out := decode(t, NewWeb(generation.NewGenerator(mock.New()), fastRetry, fakeWeb{err: errors.New("rate limited")}, 3).
		Retrieve(context.Background(), Query{Text: "adam"}))
	assert.Equal(t, "ERROR", out["status"])
	assert.Equal(t, "WEB", out["source_used"])
}

type fakePapers struct {
	got []string
}

func (f *fakePapers) Search(_ context.Context, kws []string, _ int) ([]domain.Paper, error) {
	f.got = kws
	return []domain.Paper{{ID: "1412.6980", Title: "Adam", Summary: "A method.", URL: "http://arxiv.org/abs/1412.6980"}}, nil
}

func TestAcademicSearchesKeywords(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: ragReply}
	papers := &fakePapers{}

	out := decode(t, NewAcademic(generation.NewGenerator(c), fastRetry, papers, summarizer.NewFrequencySummarizer(), 4, 3).
		Retrieve(context.Background(), Query{Text: "What optimizer does the paper use?"}))
	assert.Equal(t, []string{"optimizer"}, papers.got)
	assert.Equal(t, "TOOL", out["source_used"])
	assert.Equal(t, []any{"optimizer"}, out["keywords"])
}

func TestAcademicWithoutKeywords(t *testing.T) {
	papers := &fakePapers{}
	out := decode(t, NewAcademic(generation.NewGenerator(mock.New()), fastRetry, papers, summarizer.NewFrequencySummarizer(), 4, 3).
		Retrieve(context.Background(), Query{Text: "what is it?"}))
	assert.Equal(t, "INSUFFICIENT_CONTEXT", out["status"])
	assert.Nil(t, papers.got)
}
