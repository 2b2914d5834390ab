package ingest

import (
	"errors"

	"research/internal/config"
	embedopenai "research/internal/embedding/openai"
	"research/internal/vectorstore/qdrant"
)

var (
	ErrParse = errors.New("document parsing failed")
	ErrEmbed = errors.New("embedding failed")
	ErrStore = errors.New("vector index write failed")
	ErrAuth  = errors.New("collaborator rejected credentials")
)

// FailureKind is the category a caller renders for a failed document.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureParsing   FailureKind = "parsing"
	FailureEmbedding FailureKind = "embedding"
	FailureAuth      FailureKind = "auth"
	FailureStorage   FailureKind = "storage"
	FailureUnknown   FailureKind = "unknown"
)

var authErrors = []error{ErrAuth, config.ErrMissingCredential, embedopenai.ErrAuth, qdrant.ErrAuth}

// Classify maps an ingestion error to its failure category. Credential
// problems win over the stage they surfaced in.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return FailureAuth
		}
	}
	switch {
	case errors.Is(err, ErrParse):
		return FailureParsing
	case errors.Is(err, ErrEmbed):
		return FailureEmbedding
	case errors.Is(err, ErrStore):
		return FailureStorage
	}
	return FailureUnknown
}

// Message is a short user-facing explanation for kind.
func (k FailureKind) Message() string {
	switch k {
	case FailureParsing:
		return "the document could not be read; check that it is a text-based PDF, .txt or .md file"
	case FailureEmbedding:
		return "the embedding service failed; try again later"
	case FailureAuth:
		return "an API key is missing or was rejected; check your environment"
	case FailureStorage:
		return "the vector index could not be updated"
	case FailureNone:
		return ""
	}
	return "document processing failed"
}
