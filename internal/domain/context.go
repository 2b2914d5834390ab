package domain

import "encoding/json"

// SourceKey is one of the four fixed ContextSources keys.
type SourceKey string

const (
	KeyRAG    SourceKey = "rag_result"
	KeyMemory SourceKey = "memory_result"
	KeyWeb    SourceKey = "web_result"
	KeyTool   SourceKey = "tool_result"
)

// Display names used by the evaluator and in FinalResponse.source_used.
const (
	NameRAG    = "RAG"
	NameMemory = "Memory"
	NameWeb    = "Web"
	NameArXiv  = "ArXiv"
	NameNone   = "NONE"
)

// SourceKeys lists the keys in priority order: RAG, Memory, Web, Tool.
var SourceKeys = []SourceKey{KeyRAG, KeyMemory, KeyWeb, KeyTool}

// DisplayName maps a key to its evaluator-facing name.
func (k SourceKey) DisplayName() string {
	switch k {
	case KeyRAG:
		return NameRAG
	case KeyMemory:
		return NameMemory
	case KeyWeb:
		return NameWeb
	case KeyTool:
		return NameArXiv
	}
	return string(k)
}

// Tag maps a key to the provenance tag its adapter uses.
func (k SourceKey) Tag() SourceTag {
	switch k {
	case KeyRAG:
		return TagRAG
	case KeyMemory:
		return TagMemory
	case KeyWeb:
		return TagWeb
	case KeyTool:
		return TagTool
	}
	return TagUnknown
}

// KeyForName resolves a display name back to its key.
func KeyForName(name string) (SourceKey, bool) {
	for _, k := range SourceKeys {
		if k.DisplayName() == name {
			return k, true
		}
	}
	return "", false
}

// ContextSources holds one SourceResult per evidence source. All four entries
// always exist; the zero value of an entry is never exposed by the aggregator.
type ContextSources struct {
	RAG    SourceResult
	Memory SourceResult
	Web    SourceResult
	Tool   SourceResult
}

// SourceEntry is a keyed view over ContextSources.
type SourceEntry struct {
	Key    SourceKey
	Result SourceResult
}

// Get returns the result stored under k.
func (c *ContextSources) Get(k SourceKey) SourceResult {
	switch k {
	case KeyRAG:
		return c.RAG
	case KeyMemory:
		return c.Memory
	case KeyWeb:
		return c.Web
	case KeyTool:
		return c.Tool
	}
	return SourceResult{}
}

// Set stores r under k.
func (c *ContextSources) Set(k SourceKey, r SourceResult) {
	switch k {
	case KeyRAG:
		c.RAG = r
	case KeyMemory:
		c.Memory = r
	case KeyWeb:
		c.Web = r
	case KeyTool:
		c.Tool = r
	}
}

// Entries returns the four entries in map order.
func (c ContextSources) Entries() []SourceEntry {
	out := make([]SourceEntry, 0, len(SourceKeys))
	for _, k := range SourceKeys {
		out = append(out, SourceEntry{Key: k, Result: c.Get(k)})
	}
	return out
}

// MarshalJSON writes the four keyed entries.
func (c ContextSources) MarshalJSON() ([]byte, error) {
	m := make(map[string]SourceResult, len(SourceKeys))
	for _, e := range c.Entries() {
		m[string(e.Key)] = e.Result
	}
	return json.Marshal(m)
}

// EvaluationResult is the output of the relevance evaluator. When the model
// reply could not be parsed only RawFallback is set.
type EvaluationResult struct {
	RelevantSources []string           `json:"relevant_sources,omitempty"`
	FilteredContext map[string]any     `json:"filtered_context,omitempty"`
	RelevanceScores map[string]float64 `json:"relevance_scores,omitempty"`
	Reasoning       string             `json:"reasoning,omitempty"`
	RawFallback     string             `json:"raw_fallback,omitempty"`
}

// FinalResponse is the terminal record returned to the caller.
type FinalResponse struct {
	Status           Status            `json:"status"`
	SourceUsed       string            `json:"source_used"`
	Answer           string            `json:"answer"`
	Citations        []Citation        `json:"citations"`
	Confidence       float64           `json:"confidence"`
	Missing          []string          `json:"missing"`
	FinalResponse    string            `json:"final_response,omitempty"`
	ContextSources   *ContextSources   `json:"context_sources,omitempty"`
	EvaluationResult *EvaluationResult `json:"evaluation_result,omitempty"`
	EvaluationRaw    string            `json:"evaluation_raw,omitempty"`
	TraceID          string            `json:"trace_id,omitempty"`
}
