// Package ingest parses documents, embeds their chunks and writes them to the
// vector index.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"research/internal/domain"
	"research/internal/logger"
)

// DocumentReport is the outcome for one input path.
type DocumentReport struct {
	Path        string      `json:"path"`
	Status      string      `json:"status"`
	Chunks      int         `json:"chunks"`
	Error       string      `json:"error,omitempty"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
}

const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

type Report struct {
	Documents []DocumentReport `json:"documents"`
	Chunks    int              `json:"chunks"`
	Summary   string           `json:"summary,omitempty"`
}

// Processed counts documents that were indexed.
func (r Report) Processed() int {
	n := 0
	for _, d := range r.Documents {
		if d.Status == StatusProcessed {
			n++
		}
	}
	return n
}

// Ingester drives parser, embedder and vector store. Point IDs continue from
// the current collection size, so writes are serialized.
type Ingester struct {
	parser           domain.Parser
	embedder         domain.Embedder
	store            domain.VectorStore
	summarizer       domain.Summarizer
	batchSize        int
	summarySentences int

	mu sync.Mutex
}

func New(parser domain.Parser, embedder domain.Embedder, store domain.VectorStore, summarizer domain.Summarizer, batchSize, summarySentences int) *Ingester {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Ingester{
		parser:           parser,
		embedder:         embedder,
		store:            store,
		summarizer:       summarizer,
		batchSize:        batchSize,
		summarySentences: summarySentences,
	}
}

// Ingest indexes every path. Glob patterns are expanded. A failing document
// is reported and does not stop the others.
func (in *Ingester) Ingest(ctx context.Context, paths []string) (Report, error) {
	log := logger.FromContext(ctx)
	var report Report
	var corpus strings.Builder

	for _, p := range expand(paths) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		chunks, err := in.document(ctx, p)
		doc := DocumentReport{Path: p, Status: StatusProcessed, Chunks: len(chunks)}
		if err != nil {
			kind := Classify(err)
			doc = DocumentReport{Path: p, Status: StatusFailed, Error: err.Error(), FailureKind: kind}
			log.Warn("document failed", "path", p, "kind", kind, "error", err)
		} else {
			log.Info("document indexed", "path", p, "chunks", len(chunks))
			report.Chunks += len(chunks)
			for _, ch := range chunks {
				corpus.WriteString(ch.Text)
				corpus.WriteString("\n")
			}
		}
		report.Documents = append(report.Documents, doc)
	}

	if in.summarizer != nil && corpus.Len() > 0 {
		summary, err := in.summarizer.Summarize(corpus.String(), in.summarySentences)
		if err != nil {
			log.Warn("summary failed", "error", err)
		}
		report.Summary = summary
	}
	return report, nil
}

// IngestUpload copies r to a temporary file named after name and ingests it.
// The temporary copy is removed whatever the outcome.
func (in *Ingester) IngestUpload(ctx context.Context, name string, r io.Reader) (Report, error) {
	dir, err := os.MkdirTemp("", "research-upload-*")
	if err != nil {
		return Report{}, fmt.Errorf("create upload dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return Report{}, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return Report{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Report{}, fmt.Errorf("write upload file: %w", err)
	}
	report, err := in.Ingest(ctx, []string{path})
	for i := range report.Documents {
		report.Documents[i].Path = name
	}
	return report, err
}

func (in *Ingester) document(ctx context.Context, path string) ([]domain.Chunk, error) {
	chunks, err := in.parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	vectors := make([][]float64, 0, len(chunks))
	for start := 0; start < len(chunks); start += in.batchSize {
		end := min(start+in.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}
		vecs, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbed, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbed, len(vecs), len(texts))
		}
		vectors = append(vectors, vecs...)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	base, err := in.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	points := make([]domain.Point, len(chunks))
	for i, ch := range chunks {
		points[i] = domain.Point{ID: uint64(base + i), Vector: vectors[i], Chunk: ch}
	}
	if err := in.store.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return chunks, nil
}

func expand(paths []string) []string {
	var out []string
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		out = append(out, matches...)
	}
	return out
}
