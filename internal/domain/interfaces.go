package domain

import "context"

// Document represents a single file loaded into the system.
type Document struct {
	ID    string
	Path  string
	Pages []Page
}

// Page is the extracted text of one page of a document. Numbers start at 1.
type Page struct {
	Number int
	Text   string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Page       int
	SourceFile string
}

// Point is a chunk with its embedding and vector-index ID.
type Point struct {
	ID     uint64
	Vector []float64
	Chunk  Chunk
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Message is a single conversation turn kept by the memory store.
type Message struct {
	Role      string
	Content   string
	Seq       uint64
	CreatedAt int64
}

// Thread identifies one conversation.
type Thread struct {
	UserID   string
	ThreadID string
}

// Key returns the storage key of the thread.
func (t Thread) Key() string { return t.UserID + "/" + t.ThreadID }

// WebHit is a single web search result.
type WebHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Paper is a single academic search result.
type Paper struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Authors   []string `json:"authors"`
	URL       string   `json:"url"`
	Published string   `json:"published"`
}

// Embedder converts free text into numeric vector representations.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Parser turns a file on disk into indexed chunks.
type Parser interface {
	Parse(ctx context.Context, path string) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps conversation turns per thread.
type MemoryStore interface {
	Append(ctx context.Context, thread Thread, msgs ...Message) error
	Messages(ctx context.Context, thread Thread) ([]Message, error)
	Close() error
}

// WebSearcher runs a live web search.
type WebSearcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]WebHit, error)
}

// PaperSearcher queries an academic paper index.
type PaperSearcher interface {
	Search(ctx context.Context, keywords []string, limit int) ([]Paper, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Diagnostics reports the state of a vector index.
type Diagnostics struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection,omitempty"`
	Exists     bool   `json:"exists"`
	Count      int    `json:"count"`
	Dimension  int    `json:"dimension,omitempty"`
}
