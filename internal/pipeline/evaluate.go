package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"research/internal/domain"
	"research/internal/generation"
	"research/internal/llm"
	"research/internal/logger"
	"research/internal/telemetry"
)

// OutcomeKind tells whether the evaluator produced a typed result.
type OutcomeKind int

const (
	Structured OutcomeKind = iota
	Fallback
)

func (k OutcomeKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "fallback"
}

// EvaluationOutcome is the evaluator stage result. FilteredContext is what
// the synthesizer reads for either kind.
type EvaluationOutcome struct {
	Kind            OutcomeKind
	Result          domain.EvaluationResult
	FilteredContext map[string]any
	Raw             string
	Err             error
}

type evaluationSpec struct {
	RelevantSources []string           `json:"relevant_sources" jsonschema:"description=Names of the relevant sources: RAG, Memory, Web or ArXiv"`
	FilteredContext map[string]any     `json:"filtered_context" jsonschema:"description=Only the relevant information of each relevant source keyed by source name"`
	RelevanceScores map[string]float64 `json:"relevance_scores" jsonschema:"description=Relevance of each source to the query between 0 and 1"`
	Reasoning       string             `json:"reasoning" jsonschema:"description=Why these sources were selected"`
}

var evaluationSchema = generation.MustSchema("context_evaluation", &evaluationSpec{})

// Evaluator asks the model which sources are relevant to the query.
type Evaluator struct {
	completer   llm.Completer
	metrics     *telemetry.Metrics
	temperature float64
}

func NewEvaluator(c llm.Completer, metrics *telemetry.Metrics, temperature float64) *Evaluator {
	return &Evaluator{completer: c, metrics: metrics, temperature: temperature}
}

// Evaluate never fails: a transport error or an unparseable reply yields a
// Fallback outcome.
func (e *Evaluator) Evaluate(ctx context.Context, query string, sources domain.ContextSources) EvaluationOutcome {
	log := logger.FromContext(ctx)
	payload, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return fallback("", sources, err)
	}

	start := time.Now()
	resp, err := e.completer.Complete(ctx, llm.Request{
		System:      evaluatorSystemPrompt,
		Prompt:      fmt.Sprintf(evaluatorPromptTemplate, query, payload),
		Schema:      evaluationSchema.Doc,
		SchemaName:  evaluationSchema.Name,
		Temperature: e.temperature,
	})
	if err != nil {
		e.metrics.Generation("EVALUATOR", "transport_error", 0, 0, 0, time.Since(start))
		log.Warn("evaluation failed, using fallback", "error", err)
		return fallback("", sources, err)
	}

	result, err := parseEvaluation(resp.Text)
	outcome := "ok"
	if err != nil {
		outcome = "decode_error"
	}
	e.metrics.Generation("EVALUATOR", outcome, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.Cost, time.Since(start))
	if err != nil {
		log.Warn("evaluation reply unparseable, using fallback", "error", err)
		return fallback(resp.Text, sources, err)
	}
	result = Reconcile(result, sources)
	log.Debug("evaluation finished", "relevant", result.RelevantSources, "scores", result.RelevanceScores)
	return EvaluationOutcome{
		Kind:            Structured,
		Result:          result,
		FilteredContext: result.FilteredContext,
		Raw:             resp.Text,
	}
}

func parseEvaluation(text string) (domain.EvaluationResult, error) {
	var out domain.EvaluationResult
	var doc any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err != nil {
		return out, fmt.Errorf("%w: %v", generation.ErrDecode, err)
	}
	if err := evaluationSchema.Validate(doc); err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return out, fmt.Errorf("%w: %v", generation.ErrDecode, err)
	}
	return out, nil
}

// fallback keeps the pipeline going without a typed evaluation. A non-empty
// raw reply is normalized like adapter output; otherwise every OK source is
// passed through reduced.
func fallback(raw string, sources domain.ContextSources, err error) EvaluationOutcome {
	filtered := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		filtered = Normalize(raw).Map()
	} else {
		for _, e := range sources.Entries() {
			if e.Result.Status == domain.StatusOK {
				filtered[e.Key.DisplayName()] = reduced(e.Result)
			}
		}
	}
	return EvaluationOutcome{
		Kind:            Fallback,
		Result:          domain.EvaluationResult{RawFallback: raw},
		FilteredContext: filtered,
		Raw:             raw,
		Err:             err,
	}
}

func reduced(r domain.SourceResult) map[string]any {
	cites := r.Map()["citations"]
	return map[string]any{"answer": r.Answer, "citations": cites, "confidence": r.Confidence}
}

// Reconcile makes a model-produced evaluation consistent with the sources:
// names are canonicalized and de-duplicated, unknown names dropped, scores
// clamped, and every relevant source gets a score and a filtered entry.
func Reconcile(ev domain.EvaluationResult, sources domain.ContextSources) domain.EvaluationResult {
	out := domain.EvaluationResult{
		RelevantSources: []string{},
		FilteredContext: map[string]any{},
		RelevanceScores: map[string]float64{},
		Reasoning:       ev.Reasoning,
	}
	for name, score := range ev.RelevanceScores {
		if k, ok := canonicalKey(name); ok {
			out.RelevanceScores[k.DisplayName()] = domain.ClampUnit(score)
		}
	}
	for name, v := range ev.FilteredContext {
		if k, ok := canonicalKey(name); ok {
			out.FilteredContext[k.DisplayName()] = v
		}
	}
	seen := map[domain.SourceKey]bool{}
	for _, name := range ev.RelevantSources {
		k, ok := canonicalKey(name)
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		display := k.DisplayName()
		out.RelevantSources = append(out.RelevantSources, display)
		src := sources.Get(k)
		if _, ok := out.RelevanceScores[display]; !ok {
			out.RelevanceScores[display] = src.Confidence
		}
		if _, ok := out.FilteredContext[display]; !ok {
			out.FilteredContext[display] = reduced(src)
		}
	}
	return out
}

// canonicalKey accepts display names, key names and tags in any case.
func canonicalKey(name string) (domain.SourceKey, bool) {
	n := strings.TrimSpace(name)
	for _, k := range domain.SourceKeys {
		if strings.EqualFold(n, k.DisplayName()) || strings.EqualFold(n, string(k)) || strings.EqualFold(n, string(k.Tag())) {
			return k, true
		}
	}
	if strings.EqualFold(n, "academic") || strings.EqualFold(n, "arxiv_result") {
		return domain.KeyTool, true
	}
	return "", false
}
