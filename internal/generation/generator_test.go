package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
	"research/internal/llm"
	"research/internal/llm/mock"
	"research/internal/telemetry"
)

const okReply = `{"status":"OK","source_used":"WEB","answer":"Adam.","citations":[{"label":"Paper §3","locator":"page 4"}],"confidence":0.8,"missing":[]}`

func TestJoinContext(t *testing.T) {
	assert.Equal(t, "a\n\nb", JoinContext([]string{"  a", "b  "}))
	assert.Equal(t, "", JoinContext(nil))
}

func TestGenerateOverwritesSourceUsed(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: okReply}
	g := NewGenerator(c)

	out, err := g.Generate(context.Background(), Input{
		Query:         "What optimizer does the paper use?",
		ContextBlocks: []string{"We train with Adam.", "Learning rate 1e-3."},
		Label:         domain.TagRAG,
	})
	require.NoError(t, err)
	assert.Equal(t, "RAG", out["source_used"])
	assert.Equal(t, "Adam.", out["answer"])

	calls := c.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "We train with Adam.\n\nLearning rate 1e-3.")
	assert.Contains(t, calls[0].Prompt, "What optimizer does the paper use?")
	assert.Equal(t, SystemPrompt, calls[0].System)
	assert.True(t, calls[0].Strict)
	assert.Equal(t, "research_briefing", calls[0].SchemaName)
	assert.NotContains(t, calls[0].Schema, "$schema")
}

func TestGenerateInvalidJSONIsDecodeError(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: "Sure! The optimizer is Adam."}
	_, err := NewGenerator(c).Generate(context.Background(), Input{Query: "q", Label: domain.TagRAG})
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestGenerateSchemaMismatch(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Text: `{"status":"OK","answer":"x"}`}
	_, err := NewGenerator(c).Generate(context.Background(), Input{Query: "q", Label: domain.TagWeb})
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	c.Fallback = mock.Reply{Text: `{"status":"OK","source_used":"RAG","answer":"x","citations":[],"confidence":1.5,"missing":[]}`}
	_, err = NewGenerator(c).Generate(context.Background(), Input{Query: "q", Label: domain.TagWeb})
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestGenerateSurfacesTransportErrors(t *testing.T) {
	c := mock.New()
	c.Fallback = mock.Reply{Err: llm.ErrPayloadShape}
	_, err := NewGenerator(c).Generate(context.Background(), Input{Query: "q"})
	assert.True(t, errors.Is(err, ErrPayloadShape))
}

func TestGenerateRecordsTelemetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	c := mock.New()
	c.Fallback = mock.Reply{Text: okReply}
	g := NewGenerator(c, WithMetrics(m))

	_, err := g.Generate(context.Background(), Input{Query: "q", Label: domain.TagMemory})
	require.NoError(t, err)

	c.Fallback = mock.Reply{Text: "not json"}
	_, err = g.Generate(context.Background(), Input{Query: "q", Label: domain.TagMemory})
	require.Error(t, err)

	n, err := testutil.GatherAndCount(reg, "research_generations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBriefingSchemaIsClosed(t *testing.T) {
	assert.Equal(t, false, BriefingSchema.Doc["additionalProperties"])
	required, ok := BriefingSchema.Doc["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"status", "source_used", "answer", "citations", "confidence", "missing"}, required)
}
