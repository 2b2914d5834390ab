package generation

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	kjs "github.com/kaptinlin/jsonschema"
)

// Schema is a JSON schema reflected from a Go type, kept both as the document
// sent to the model and as a compiled validator for its reply.
type Schema struct {
	Name     string
	Doc      map[string]any
	compiled *kjs.Schema
}

// NewSchema reflects v into a closed object schema: every field without
// omitempty is required and no additional properties are allowed.
func NewSchema(name string, v any) (*Schema, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", name, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s schema: %w", name, err)
	}
	// Providers reject meta keys in response_format schemas.
	delete(doc, "$schema")
	delete(doc, "$id")
	cleaned, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", name, err)
	}
	compiled, err := kjs.NewCompiler().Compile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{Name: name, Doc: doc, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schemas built from static types.
func MustSchema(name string, v any) *Schema {
	s, err := NewSchema(name, v)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(value any) error {
	result := s.compiled.Validate(value)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, s.Name, result.Errors)
}

// briefing is the reply every evidence source generation must produce.
type briefing struct {
	Status     string         `json:"status" jsonschema:"enum=OK,enum=INSUFFICIENT_CONTEXT"`
	SourceUsed string         `json:"source_used" jsonschema:"enum=MEMORY,enum=RAG,enum=WEB,enum=TOOL,enum=NONE"`
	Answer     string         `json:"answer"`
	Citations  []citationSpec `json:"citations"`
	Confidence float64        `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Missing    []string       `json:"missing"`
}

type citationSpec struct {
	Label   string `json:"label"`
	Locator string `json:"locator"`
}

// BriefingSchema is the SourceResult contract for grounded generation.
var BriefingSchema = MustSchema("research_briefing", &briefing{})
