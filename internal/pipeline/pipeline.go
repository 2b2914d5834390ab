// Package pipeline turns a question into a FinalResponse: it aggregates the
// evidence sources, evaluates their relevance, drafts an answer and picks the
// source of truth.
package pipeline

import (
	"context"
	"time"

	"research/internal/adapter"
	"research/internal/domain"
	"research/internal/logger"
	"research/internal/memory"
)

// Pipeline runs the stages sequentially for one query.
type Pipeline struct {
	aggregator  *Aggregator
	evaluator   *Evaluator
	synthesizer *Synthesizer
	memory      *memory.Service

	queryLength  int
	answerLength int
}

type Option func(*Pipeline)

// WithCondensation sets the rune bounds for stored user and assistant turns.
func WithCondensation(queryLength, answerLength int) Option {
	return func(p *Pipeline) {
		p.queryLength = queryLength
		p.answerLength = answerLength
	}
}

// New builds a pipeline. mem may be nil, in which case turns are not stored.
func New(agg *Aggregator, ev *Evaluator, syn *Synthesizer, mem *memory.Service, opts ...Option) *Pipeline {
	p := &Pipeline{
		aggregator:   agg,
		evaluator:    ev,
		synthesizer:  syn,
		memory:       mem,
		queryLength:  1500,
		answerLength: 2000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers q. It fails only when ctx is cancelled; every other failure
// degrades into the returned response. The condensed user turn is stored
// after arbitration together with the answer, not before synthesis, so a
// cancelled request leaves no turn behind.
func (p *Pipeline) Run(ctx context.Context, q adapter.Query) (*domain.FinalResponse, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	userTurn := Condense(q.Text, p.queryLength)

	sources := p.aggregator.Aggregate(ctx, q)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome := p.evaluator.Evaluate(ctx, q.Text, sources)
	synthesis := p.synthesizer.Synthesize(ctx, q.Text, outcome)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	verdict := Arbitrate(outcome.Result, sources, synthesis.Answer)

	resp := &domain.FinalResponse{
		Status:         verdict.Status,
		SourceUsed:     verdict.SourceUsed,
		Answer:         synthesis.Answer,
		Citations:      verdict.Citations,
		Confidence:     verdict.Confidence,
		Missing:        verdict.Missing,
		FinalResponse:  synthesis.Answer,
		ContextSources: &sources,
	}
	if outcome.Kind == Structured {
		result := outcome.Result
		resp.EvaluationResult = &result
	} else {
		resp.EvaluationResult = &domain.EvaluationResult{RawFallback: outcome.Raw}
		resp.EvaluationRaw = outcome.Raw
	}

	p.remember(ctx, q.Thread, userTurn, synthesis.Answer)
	log.Info("query answered",
		"status", resp.Status,
		"source", resp.SourceUsed,
		"confidence", resp.Confidence,
		"evaluation", outcome.Kind,
		"took", time.Since(start))
	return resp, nil
}

// remember stores both turns in one append so a cancelled request commits
// neither.
func (p *Pipeline) remember(ctx context.Context, thread domain.Thread, userTurn, answer string) {
	if p.memory == nil {
		return
	}
	msgs := []domain.Message{{Role: memory.RoleUser, Content: userTurn}}
	if answer != "" {
		msgs = append(msgs, domain.Message{Role: memory.RoleAssistant, Content: Condense(answer, p.answerLength)})
	}
	if err := p.memory.Save(ctx, thread, msgs...); err != nil {
		logger.FromContext(ctx).Warn("failed to store turn", "thread", thread.Key(), "error", err)
	}
}
