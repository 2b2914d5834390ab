package pipeline

import (
	"research/internal/domain"
)

// MissingContextNote is the missing entry of a non-OK final response.
const MissingContextNote = "Additional context needed to fully answer the query"

// Verdict is what the arbiter decides about a drafted answer.
type Verdict struct {
	SourceUsed string
	Confidence float64
	Status     domain.Status
	Citations  []domain.Citation
	Missing    []string
}

// Arbitrate picks the source of truth, the confidence and the status.
//
// The source is the highest-scored relevant source when the evaluation has
// both relevant sources and scores, else the most confident OK source in the
// order RAG, Memory, Web, ArXiv, else NONE. Ties go to the first candidate.
// Any positive confidence with a non-empty answer is OK.
func Arbitrate(ev domain.EvaluationResult, sources domain.ContextSources, answer string) Verdict {
	var available []string
	sourceConf := map[string]float64{}
	for _, e := range sources.Entries() {
		if e.Result.Status == domain.StatusOK {
			name := e.Key.DisplayName()
			available = append(available, name)
			sourceConf[name] = e.Result.Confidence
		}
	}

	used := domain.NameNone
	switch {
	case len(ev.RelevantSources) > 0 && len(ev.RelevanceScores) > 0:
		used = argmax(ev.RelevantSources, func(s string) float64 {
			if v, ok := ev.RelevanceScores[s]; ok {
				return v
			}
			return sourceConf[s]
		})
	case len(available) > 0:
		used = argmax(available, func(s string) float64 { return sourceConf[s] })
	}

	confidence := 0.0
	if used != domain.NameNone {
		if v, ok := ev.RelevanceScores[used]; ok {
			confidence = v
		} else if v, ok := sourceConf[used]; ok {
			confidence = v
		} else if len(ev.RelevanceScores) > 0 {
			confidence = maxValue(ev.RelevanceScores)
		} else if len(sourceConf) > 0 {
			confidence = maxValue(sourceConf)
		}
	}
	confidence = domain.ClampUnit(confidence)

	v := Verdict{
		SourceUsed: used,
		Confidence: confidence,
		Status:     domain.StatusInsufficientContext,
		Citations:  FlattenCitations(sources),
		Missing:    []string{MissingContextNote},
	}
	if confidence > 0 && answer != "" {
		v.Status = domain.StatusOK
		v.Missing = []string{}
	}
	return v
}

// FlattenCitations concatenates every source's citations in key order
// without de-duplication.
func FlattenCitations(sources domain.ContextSources) []domain.Citation {
	out := []domain.Citation{}
	for _, e := range sources.Entries() {
		out = append(out, e.Result.Citations...)
	}
	return out
}

func argmax(names []string, score func(string) float64) string {
	best := names[0]
	bestScore := score(best)
	for _, n := range names[1:] {
		if s := score(n); s > bestScore {
			best, bestScore = n, s
		}
	}
	return best
}

func maxValue(m map[string]float64) float64 {
	first := true
	out := 0.0
	for _, v := range m {
		if first || v > out {
			out = v
			first = false
		}
	}
	return out
}
