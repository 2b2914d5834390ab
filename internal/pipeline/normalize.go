package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"research/internal/domain"
)

// Normalize turns the raw output of an adapter into a SourceResult.
//
// A JSON object passes through with every field kept; a status that is
// missing or not a known value is inferred, and its raw value stays under
// domain.RawStatusKey. Anything else is treated as text: text mentioning "error" or
// "failed" becomes an ERROR record, other text an unverified OK record with
// confidence 0.5.
func Normalize(raw string) domain.SourceResult {
	trimmed := strings.TrimSpace(raw)
	if gjson.Valid(trimmed) && gjson.Parse(trimmed).IsObject() {
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
			return fromObject(m, trimmed)
		}
	}
	return fromText(raw)
}

func fromObject(m map[string]any, raw string) domain.SourceResult {
	r := domain.FromMap(m)
	if r.Status.Valid() {
		return r
	}
	_, hasErr := m["error"]
	switch {
	case hasErr || strings.Contains(strings.ToLower(raw), "error"):
		r.Status = domain.StatusError
	case r.Answer == "" && len(r.Citations) == 0:
		r.Status = domain.StatusInsufficientContext
	default:
		r.Status = domain.StatusOK
	}
	return r
}

func fromText(raw string) domain.SourceResult {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		return domain.SourceResult{
			Status:     domain.StatusError,
			SourceUsed: domain.TagUnknown,
			Answer:     raw,
			Citations:  []domain.Citation{},
			Confidence: 0,
			Extra:      map[string]any{"error": raw},
		}
	}
	return domain.SourceResult{
		Status:     domain.StatusOK,
		SourceUsed: domain.TagUnknown,
		Answer:     raw,
		Citations:  []domain.Citation{},
		Confidence: 0.5,
	}
}
