package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"research/internal/llm"
	"research/internal/logger"
	"research/internal/telemetry"
)

type SynthesisKind int

const (
	Drafted SynthesisKind = iota
	Degraded
)

// Synthesis is the synthesizer stage result. A Degraded synthesis has an
// empty answer and the cause in Err.
type Synthesis struct {
	Kind   SynthesisKind
	Answer string
	Err    error
}

var errEmptySynthesis = errors.New("synthesizer returned an empty answer")

type Synthesizer struct {
	completer   llm.Completer
	metrics     *telemetry.Metrics
	temperature float64
	maxTokens   int
}

func NewSynthesizer(c llm.Completer, metrics *telemetry.Metrics, temperature float64, maxTokens int) *Synthesizer {
	return &Synthesizer{completer: c, metrics: metrics, temperature: temperature, maxTokens: maxTokens}
}

// Synthesize drafts the final answer from the filtered context only.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, ev EvaluationOutcome) Synthesis {
	filtered, err := json.MarshalIndent(ev.FilteredContext, "", "  ")
	if err != nil {
		return Synthesis{Kind: Degraded, Err: fmt.Errorf("encode filtered context: %w", err)}
	}
	notes := ev.Result.Reasoning
	if notes == "" {
		notes = "none"
	}

	start := time.Now()
	resp, err := s.completer.Complete(ctx, llm.Request{
		System:      synthesizerSystemPrompt,
		Prompt:      fmt.Sprintf(synthesizerPromptTemplate, query, filtered, notes),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		s.metrics.Generation("SYNTHESIZER", "transport_error", 0, 0, 0, time.Since(start))
		logger.FromContext(ctx).Warn("synthesis failed", "error", err)
		return Synthesis{Kind: Degraded, Err: err}
	}
	s.metrics.Generation("SYNTHESIZER", "ok", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.Cost, time.Since(start))

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return Synthesis{Kind: Degraded, Err: errEmptySynthesis}
	}
	return Synthesis{Kind: Drafted, Answer: answer}
}
