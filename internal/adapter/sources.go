package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"research/internal/domain"
	"research/internal/generation"
	"research/internal/memory"
)

// RAG answers from the document vector index.
type RAG struct {
	grounded
	embedder domain.Embedder
	store    domain.VectorStore
	topK     int
}

func NewRAG(gen *generation.Generator, policy RetryPolicy, embedder domain.Embedder, store domain.VectorStore, topK int) *RAG {
	if topK <= 0 {
		topK = 3
	}
	return &RAG{grounded: grounded{gen, policy}, embedder: embedder, store: store, topK: topK}
}

func (a *RAG) Key() domain.SourceKey { return domain.KeyRAG }

func (a *RAG) Retrieve(ctx context.Context, q Query) (out string) {
	defer recoverAs(domain.TagRAG, &out)
	vecs, err := a.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return errorOutput(domain.TagRAG, ErrTypeRetrieval, fmt.Errorf("embed query: %w", err))
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return errorOutput(domain.TagRAG, ErrTypeRetrieval, errors.New("embedder returned an empty vector"))
	}
	hits, err := a.store.Search(ctx, vecs[0], a.topK)
	if err != nil {
		return errorOutput(domain.TagRAG, ErrTypeRetrieval, fmt.Errorf("vector search: %w", err))
	}
	if len(hits) == 0 {
		return insufficient(domain.TagRAG, "No indexed document passages match the query")
	}
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[%s, page %d, chunk %d]\n%s", h.Chunk.SourceFile, h.Chunk.Page, h.Chunk.Index, h.Chunk.Text)
	}
	return a.answer(ctx, domain.TagRAG, q.Text, blocks, map[string]any{
		"context": generation.JoinContext(blocks),
	})
}

// Memory answers from the condensed history of the current thread.
type Memory struct {
	grounded
	memory *memory.Service
}

func NewMemory(gen *generation.Generator, policy RetryPolicy, mem *memory.Service) *Memory {
	return &Memory{grounded: grounded{gen, policy}, memory: mem}
}

func (a *Memory) Key() domain.SourceKey { return domain.KeyMemory }

func (a *Memory) Retrieve(ctx context.Context, q Query) (out string) {
	defer recoverAs(domain.TagMemory, &out)
	history, err := a.memory.Retrieve(ctx, q.Thread, q.Text)
	if err != nil {
		return errorOutput(domain.TagMemory, ErrTypeRetrieval, fmt.Errorf("load memory: %w", err))
	}
	if strings.TrimSpace(history) == "" {
		return insufficient(domain.TagMemory, "No prior conversation in this thread")
	}
	return a.answer(ctx, domain.TagMemory, q.Text, []string{history}, map[string]any{
		"context": history,
	})
}

// Web answers from live web search snippets.
type Web struct {
	grounded
	searcher domain.WebSearcher
	limit    int
}

func NewWeb(gen *generation.Generator, policy RetryPolicy, searcher domain.WebSearcher, limit int) *Web {
	return &Web{grounded: grounded{gen, policy}, searcher: searcher, limit: limit}
}

func (a *Web) Key() domain.SourceKey { return domain.KeyWeb }

func (a *Web) Retrieve(ctx context.Context, q Query) (out string) {
	defer recoverAs(domain.TagWeb, &out)
	hits, err := a.searcher.Search(ctx, q.Text, a.limit)
	if err != nil {
		return errorOutput(domain.TagWeb, ErrTypeRetrieval, fmt.Errorf("%s search: %w", a.searcher.Name(), err))
	}
	if len(hits) == 0 {
		return insufficient(domain.TagWeb, "Web search returned no results")
	}
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("SOURCE: %s\nURL: %s\n%s", h.Title, h.URL, h.Snippet)
	}
	return a.answer(ctx, domain.TagWeb, q.Text, blocks, map[string]any{
		"search_results": hits,
	})
}

// Keyworder extracts search keywords from a query.
type Keyworder interface {
	Keywords(text string, n int) []string
}

// Academic answers from arXiv papers found by keywords of the query.
type Academic struct {
	grounded
	searcher    domain.PaperSearcher
	keywords    Keyworder
	maxKeywords int
	limit       int
}

func NewAcademic(gen *generation.Generator, policy RetryPolicy, searcher domain.PaperSearcher, kw Keyworder, maxKeywords, limit int) *Academic {
	return &Academic{grounded: grounded{gen, policy}, searcher: searcher, keywords: kw, maxKeywords: maxKeywords, limit: limit}
}

func (a *Academic) Key() domain.SourceKey { return domain.KeyTool }

func (a *Academic) Retrieve(ctx context.Context, q Query) (out string) {
	defer recoverAs(domain.TagTool, &out)
	kws := a.keywords.Keywords(q.Text, a.maxKeywords)
	if len(kws) == 0 {
		return insufficient(domain.TagTool, "Query has no searchable keywords")
	}
	papers, err := a.searcher.Search(ctx, kws, a.limit)
	if err != nil {
		return errorOutput(domain.TagTool, ErrTypeRetrieval, fmt.Errorf("paper search: %w", err))
	}
	if len(papers) == 0 {
		return insufficient(domain.TagTool, "No papers found for: "+strings.Join(kws, ", "))
	}
	blocks := make([]string, len(papers))
	for i, p := range papers {
		blocks[i] = fmt.Sprintf("SOURCE: %s (arXiv:%s, %s)\nAuthors: %s\nURL: %s\n%s",
			p.Title, p.ID, p.Published, strings.Join(p.Authors, ", "), p.URL, p.Summary)
	}
	return a.answer(ctx, domain.TagTool, q.Text, blocks, map[string]any{
		"search_results": papers,
		"keywords":       kws,
	})
}
