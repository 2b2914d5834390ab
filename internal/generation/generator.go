// Package generation turns a query plus context blocks into a schema-checked
// JSON answer from a language model.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"research/internal/domain"
	"research/internal/llm"
	"research/internal/logger"
	"research/internal/telemetry"
)

var (
	// ErrDecode means the model reply was not a JSON object.
	ErrDecode = errors.New("model did not return valid JSON")
	// ErrSchemaMismatch means the reply decoded but broke the schema.
	ErrSchemaMismatch = errors.New("model reply does not match schema")
	// ErrPayloadShape means the transport response lacked the expected fields.
	ErrPayloadShape = llm.ErrPayloadShape
)

// Input is one generation request.
type Input struct {
	Query         string
	ContextBlocks []string
	Label         domain.SourceTag
	// Schema overrides BriefingSchema.
	Schema *Schema
}

// Generator wraps a Completer with the grounding policy and a JSON contract.
// It never retries; callers own the retry policy.
type Generator struct {
	completer   llm.Completer
	metrics     *telemetry.Metrics
	temperature float64
	maxTokens   int
}

type Option func(*Generator)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithSampling(temperature float64, maxTokens int) Option {
	return func(g *Generator) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

func NewGenerator(c llm.Completer, opts ...Option) *Generator {
	g := &Generator{completer: c, temperature: 0.2}
	for _, o := range opts {
		o(g)
	}
	return g
}

// JoinContext joins blocks with blank lines and trims the result.
func JoinContext(blocks []string) string {
	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}

// Generate asks the model for a grounded answer and returns the decoded
// object with source_used set to in.Label.
func (g *Generator) Generate(ctx context.Context, in Input) (map[string]any, error) {
	schema := in.Schema
	if schema == nil {
		schema = BriefingSchema
	}
	label := string(in.Label)
	log := logger.FromContext(ctx).With("label", label)

	start := time.Now()
	resp, err := g.completer.Complete(ctx, llm.Request{
		System:      SystemPrompt,
		Prompt:      RenderPrompt(JoinContext(in.ContextBlocks), in.Query),
		Schema:      schema.Doc,
		SchemaName:  schema.Name,
		Strict:      true,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	took := time.Since(start)
	if err != nil {
		g.metrics.Generation(label, "transport_error", 0, 0, 0, took)
		log.Warn("generation failed", "error", err, "took", took)
		return nil, err
	}

	out, err := decode(resp.Text, schema)
	outcome := "ok"
	if err != nil {
		outcome = "decode_error"
	}
	g.metrics.Generation(label, outcome, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.Cost, took)
	log.Debug("generation finished",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"cost", resp.Usage.Cost,
		"took", took,
		"outcome", outcome,
	)
	if err != nil {
		return nil, err
	}
	if in.Label != "" {
		out["source_used"] = label
	}
	return out, nil
}

func decode(text string, schema *Schema) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil || out == nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, preview(text))
	}
	if err := schema.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func preview(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
