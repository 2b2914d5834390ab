// Package service owns the long-lived research assistant: the vector index,
// the ingestion path and the query pipeline, plus the session state shown
// by the status command.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"research/internal/adapter"
	"research/internal/domain"
	"research/internal/ingest"
	"research/internal/logger"
	"research/internal/pipeline"
)

// DefaultUserID is used when a query names no user.
const DefaultUserID = "web_user"

var (
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrNotInitialized = errors.New("assistant is not initialized")
)

// Diagnoser is implemented by vector stores that can describe their index.
type Diagnoser interface {
	Diagnose(ctx context.Context) (domain.Diagnostics, error)
}

// State is the session state reported by Status.
type State struct {
	Initialized        bool   `json:"initialized"`
	DocumentsProcessed int    `json:"documents_processed"`
	CurrentDocument    string `json:"current_document,omitempty"`
	CollectionCount    int    `json:"collection_count"`
}

// AskRequest is one query. Empty UserID and ThreadID get defaults.
type AskRequest struct {
	Query    string `json:"query"`
	UserID   string `json:"user_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

type Assistant struct {
	pipeline  *pipeline.Pipeline
	ingester  *ingest.Ingester
	store     domain.VectorStore
	dimension int
	log       logger.Logger

	mu    sync.RWMutex
	state State
}

func New(p *pipeline.Pipeline, in *ingest.Ingester, store domain.VectorStore, dimension int, log logger.Logger) *Assistant {
	if log == nil {
		log = logger.NewNop()
	}
	return &Assistant{pipeline: p, ingester: in, store: store, dimension: dimension, log: log}
}

// Initialize prepares the vector index. Calling it again is a no-op.
func (a *Assistant) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Initialized {
		return nil
	}
	if err := a.store.Init(ctx, a.dimension); err != nil {
		return fmt.Errorf("%w: %w", ErrNotInitialized, err)
	}
	a.state.Initialized = true
	a.log.Info("assistant initialized", "dimension", a.dimension)
	return nil
}

// Ingest indexes documents and records them in the session state.
func (a *Assistant) Ingest(ctx context.Context, paths []string) (ingest.Report, error) {
	if err := a.Initialize(ctx); err != nil {
		return ingest.Report{}, err
	}
	report, err := a.ingester.Ingest(logger.ContextWithLogger(ctx, a.log), paths)
	a.record(report)
	return report, err
}

// IngestUpload indexes an uploaded document.
func (a *Assistant) IngestUpload(ctx context.Context, name string, r io.Reader) (ingest.Report, error) {
	if err := a.Initialize(ctx); err != nil {
		return ingest.Report{}, err
	}
	report, err := a.ingester.IngestUpload(logger.ContextWithLogger(ctx, a.log), name, r)
	a.record(report)
	return report, err
}

func (a *Assistant) record(report ingest.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range report.Documents {
		if d.Status == ingest.StatusProcessed {
			a.state.DocumentsProcessed++
			a.state.CurrentDocument = d.Path
		}
	}
}

// Ask runs the query pipeline. The response carries a fresh trace id.
func (a *Assistant) Ask(ctx context.Context, req AskRequest) (*domain.FinalResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}
	thread := domain.Thread{UserID: req.UserID, ThreadID: req.ThreadID}
	if thread.UserID == "" {
		thread.UserID = DefaultUserID
	}
	if thread.ThreadID == "" {
		thread.ThreadID = uuid.NewString()
	}
	traceID := uuid.NewString()
	log := a.log.With("trace_id", traceID, "thread", thread.Key())
	log.Debug("query received", "query", query)

	resp, err := a.pipeline.Run(logger.ContextWithLogger(ctx, log), adapter.Query{Text: query, Thread: thread})
	if err != nil {
		return nil, err
	}
	resp.TraceID = traceID
	return resp, nil
}

// Status reports the session state and the current collection size.
func (a *Assistant) Status(ctx context.Context) (State, error) {
	a.mu.RLock()
	st := a.state
	a.mu.RUnlock()
	if !st.Initialized {
		return st, nil
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return st, fmt.Errorf("count collection: %w", err)
	}
	st.CollectionCount = n
	return st, nil
}

// Diagnose describes the vector index when the store supports it.
func (a *Assistant) Diagnose(ctx context.Context) (domain.Diagnostics, error) {
	if d, ok := a.store.(Diagnoser); ok {
		return d.Diagnose(ctx)
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return domain.Diagnostics{}, err
	}
	return domain.Diagnostics{Backend: "unknown", Exists: true, Count: n}, nil
}
