package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
	"research/internal/llm"
	"research/internal/llm/mock"
)

func ragOnlySources() domain.ContextSources {
	cs := insufficientSources()
	cs.Set(domain.KeyRAG, domain.SourceResult{
		Status:     domain.StatusOK,
		SourceUsed: domain.TagRAG,
		Answer:     "The paper uses Adam.",
		Citations:  []domain.Citation{{Label: "Paper §3", Locator: "page 4"}},
		Confidence: 0.8,
	})
	return cs
}

func TestEvaluateStructured(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: `{
		"relevant_sources": ["rag", "RAG", "Bing"],
		"filtered_context": {"RAG": {"answer": "Adam"}},
		"relevance_scores": {"RAG": 1.4, "Web": 0.1},
		"reasoning": "only the paper answers it"
	}`}

	out := NewEvaluator(c, nil, 0).Evaluate(context.Background(), "Which optimizer?", ragOnlySources())

	require.Equal(t, Structured, out.Kind)
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"RAG"}, out.Result.RelevantSources)
	assert.Equal(t, 1.0, out.Result.RelevanceScores["RAG"])
	assert.Equal(t, 0.1, out.Result.RelevanceScores["Web"])
	assert.Equal(t, map[string]any{"answer": "Adam"}, out.FilteredContext["RAG"])
	assert.Equal(t, "only the paper answers it", out.Result.Reasoning)

	calls := c.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "context_evaluation", calls[0].SchemaName)
	assert.Contains(t, calls[0].Prompt, "rag_result")
}

func TestEvaluateFallsBackOnTransportError(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Err: llm.ErrTransport}

	out := NewEvaluator(c, nil, 0).Evaluate(context.Background(), "Which optimizer?", ragOnlySources())

	assert.Equal(t, Fallback, out.Kind)
	assert.True(t, errors.Is(out.Err, llm.ErrTransport))
	assert.Empty(t, out.Result.RelevantSources)
	assert.Contains(t, out.FilteredContext, "RAG")
	assert.Len(t, out.FilteredContext, 1)
}

func TestEvaluateFallsBackOnUnparseableReply(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: "RAG looks relevant, the others are empty."}

	out := NewEvaluator(c, nil, 0).Evaluate(context.Background(), "Which optimizer?", ragOnlySources())

	assert.Equal(t, Fallback, out.Kind)
	assert.Equal(t, "RAG looks relevant, the others are empty.", out.Result.RawFallback)
	assert.Equal(t, "RAG looks relevant, the others are empty.", out.FilteredContext["answer"])
}

func TestEvaluateRejectsReplyMissingFields(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: `{"relevant_sources":["RAG"]}`}

	out := NewEvaluator(c, nil, 0).Evaluate(context.Background(), "q", ragOnlySources())
	assert.Equal(t, Fallback, out.Kind)
	assert.Error(t, out.Err)
}

func TestReconcileFillsScoresFromSources(t *testing.T) {
	ev := Reconcile(domain.EvaluationResult{RelevantSources: []string{"memory_result", "RAG"}}, ragOnlySources())
	assert.Equal(t, []string{"Memory", "RAG"}, ev.RelevantSources)
	assert.Equal(t, 0.8, ev.RelevanceScores["RAG"])
	assert.Zero(t, ev.RelevanceScores["Memory"])
	assert.Contains(t, ev.FilteredContext, "RAG")
}
