package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the outcome of one evidence source or of the whole query.
type Status string

const (
	StatusOK                  Status = "OK"
	StatusInsufficientContext Status = "INSUFFICIENT_CONTEXT"
	StatusError               Status = "ERROR"
)

// SourceTag tags the provenance of a SourceResult.
type SourceTag string

const (
	TagMemory  SourceTag = "MEMORY"
	TagRAG     SourceTag = "RAG"
	TagWeb     SourceTag = "WEB"
	TagTool    SourceTag = "TOOL"
	TagNone    SourceTag = "NONE"
	TagUnknown SourceTag = "UNKNOWN"
)

// Citation points at the evidence behind an answer.
type Citation struct {
	Label   string `json:"label"`
	Locator string `json:"locator"`
}

// SourceResult is the record every evidence adapter produces.
// Fields the pipeline does not interpret are kept in Extra and written back on
// marshal, so decoding and re-encoding never drops data.
type SourceResult struct {
	Status     Status
	SourceUsed SourceTag
	Answer     string
	Citations  []Citation
	Confidence float64
	Missing    []string
	Extra      map[string]any
}

var knownFields = map[string]struct{}{
	"status": {}, "source_used": {}, "answer": {}, "citations": {}, "confidence": {}, "missing": {},
}

// RawStatusKey holds a status value that was not one of the known statuses.
const RawStatusKey = "status_raw"

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusInsufficientContext, StatusError:
		return true
	}
	return false
}

// Map renders the result as a JSON-shaped map including extras. An extra
// stored under a known key is the original value of a mistyped field and
// wins over the typed rendering, except for status.
func (r SourceResult) Map() map[string]any {
	out := make(map[string]any, len(r.Extra)+6)
	cites := make([]any, 0, len(r.Citations))
	for _, c := range r.Citations {
		cites = append(cites, map[string]any{"label": c.Label, "locator": c.Locator})
	}
	missing := make([]any, 0, len(r.Missing))
	for _, m := range r.Missing {
		missing = append(missing, m)
	}
	out["status"] = string(r.Status)
	out["source_used"] = string(r.SourceUsed)
	out["answer"] = r.Answer
	out["citations"] = cites
	out["confidence"] = r.Confidence
	out["missing"] = missing
	for k, v := range r.Extra {
		if k == "status" {
			continue
		}
		out[k] = v
	}
	return out
}

// MarshalJSON writes known fields and extras as one flat object.
func (r SourceResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON accepts a flat object; unknown or mistyped fields land in Extra.
func (r *SourceResult) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = FromMap(m)
	return nil
}

// FromMap builds a SourceResult from a decoded JSON object. Values that do not
// fit the typed fields are preserved under their original key in Extra.
func FromMap(m map[string]any) SourceResult {
	var r SourceResult
	for k, v := range m {
		if _, known := knownFields[k]; !known {
			r.setExtra(k, v)
		}
	}
	if v, ok := m["status"]; ok {
		s, _ := v.(string)
		if st := Status(strings.ToUpper(strings.TrimSpace(s))); st.Valid() {
			r.Status = st
		} else if v != nil {
			r.setExtra(RawStatusKey, v)
		}
	}
	if v, ok := m["source_used"]; ok {
		if s, ok := v.(string); ok {
			r.SourceUsed = SourceTag(s)
		} else {
			r.setExtra("source_used", v)
		}
	}
	if v, ok := m["answer"]; ok {
		switch a := v.(type) {
		case string:
			r.Answer = a
		case nil:
		default:
			r.Answer = fmt.Sprint(a)
			r.setExtra("answer", v)
		}
	}
	if v, ok := m["citations"]; ok {
		cites, clean := citationsFrom(v)
		r.Citations = cites
		if !clean {
			r.setExtra("citations", v)
		}
	}
	if v, ok := m["confidence"]; ok {
		switch c := v.(type) {
		case float64:
			r.Confidence = ClampUnit(c)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
				r.Confidence = ClampUnit(f)
			}
			r.setExtra("confidence", v)
		case nil:
		default:
			r.setExtra("confidence", v)
		}
	}
	if v, ok := m["missing"]; ok {
		if items, ok := v.([]any); ok {
			for _, it := range items {
				if s, ok := it.(string); ok {
					r.Missing = append(r.Missing, s)
				} else {
					r.setExtra("missing", v)
				}
			}
		} else if v != nil {
			r.setExtra("missing", v)
		}
	}
	return r
}

func citationsFrom(v any) ([]Citation, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, v == nil
	}
	clean := true
	out := make([]Citation, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, Citation{Label: strings.TrimSpace(s)})
			clean = false
			continue
		}
		obj, ok := it.(map[string]any)
		if !ok {
			clean = false
			continue
		}
		label, _ := obj["label"].(string)
		locator, _ := obj["locator"].(string)
		if label == "" && locator == "" {
			clean = false
			continue
		}
		out = append(out, Citation{Label: label, Locator: locator})
	}
	return out, clean
}

func (r *SourceResult) setExtra(k string, v any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[k] = v
}

// ClampUnit bounds f to [0,1].
func ClampUnit(f float64) float64 {
	if f < 0 || f != f {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ErrorResult builds an ERROR record for a failed source.
func ErrorResult(tag SourceTag, errType string, err error) SourceResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return SourceResult{
		Status:     StatusError,
		SourceUsed: tag,
		Citations:  []Citation{},
		Missing:    []string{fmt.Sprintf("%s source unavailable", tag)},
		Extra:      map[string]any{"error": msg, "error_type": errType},
	}
}
