// Package app assembles the assistant from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"research/internal/adapter"
	"research/internal/chunker"
	"research/internal/config"
	"research/internal/domain"
	"research/internal/embedding/gemini"
	"research/internal/embedding/hashing"
	embedopenai "research/internal/embedding/openai"
	"research/internal/generation"
	"research/internal/ingest"
	"research/internal/llm"
	"research/internal/llm/claude"
	llmgemini "research/internal/llm/gemini"
	"research/internal/llm/mock"
	llmopenai "research/internal/llm/openai"
	"research/internal/logger"
	"research/internal/memory"
	"research/internal/memory/badger"
	"research/internal/memory/inmem"
	"research/internal/parser"
	"research/internal/pipeline"
	"research/internal/search/arxiv"
	"research/internal/search/web"
	"research/internal/service"
	"research/internal/summarizer"
	"research/internal/telemetry"
	vsmemory "research/internal/vectorstore/memory"
	"research/internal/vectorstore/qdrant"
)

// App holds the assembled assistant and the resources to release on exit.
type App struct {
	Assistant *service.Assistant
	Registry  *prometheus.Registry

	memory *memory.Service
}

// Build wires every collaborator named in cfg. Missing credentials for a
// required collaborator fail with config.ErrMissingCredential.
func Build(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	completer, err := buildCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	completer = llm.WithRateLimit(completer, cfg.LLM.RequestsPerSecond)

	emb, err := buildEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	dim, err := probeDimension(ctx, emb)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	store, err := buildVectorStore(cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	mem, err := buildMemory(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}

	gen := generation.NewGenerator(completer,
		generation.WithMetrics(metrics),
		generation.WithSampling(cfg.LLM.Temperature, cfg.LLM.MaxTokens))
	policy := adapter.DefaultRetryPolicy()
	policy.MaxRetries = uint64(max(cfg.Pipeline.MaxRetries, 0))

	freq := summarizer.NewFrequencySummarizer()
	adapters := []adapter.Adapter{
		adapter.NewRAG(gen, policy, emb, store, cfg.Pipeline.TopK),
		adapter.NewMemory(gen, policy, mem),
	}
	searcher, err := buildWebSearcher(cfg.WebSearch)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("web search: %w", err)
	}
	if searcher != nil {
		adapters = append(adapters, adapter.NewWeb(gen, policy, searcher, cfg.WebSearch.Limit))
	}
	if cfg.Academic.Type == "arxiv" {
		papers := arxiv.NewClient(cfg.Academic.BaseURL, seconds(cfg.Academic.TimeoutSecs))
		adapters = append(adapters, adapter.NewAcademic(gen, policy, papers, freq, cfg.Academic.MaxKeywords, cfg.Academic.Limit))
	}

	p := pipeline.New(
		pipeline.NewAggregator(adapters, cfg.AdapterTimeout(), metrics),
		pipeline.NewEvaluator(completer, metrics, cfg.LLM.Temperature),
		pipeline.NewSynthesizer(completer, metrics, cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		mem,
		pipeline.WithCondensation(cfg.Pipeline.QueryMemoryLength, cfg.Pipeline.AnswerMemoryLength),
	)

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "sentence", "":
		ch = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	default:
		mem.Close()
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = freq
	case "none":
	default:
		mem.Close()
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
	in := ingest.New(parser.New(ch), emb, store, sum, cfg.Embedder.BatchSize, cfg.Summarizer.MaxSentences)

	log.Debug("assistant assembled",
		"llm", completer.Name(),
		"embedder", emb.Name(),
		"dimension", dim,
		"vector_store", cfg.VectorStore.Type,
		"memory", cfg.Memory.Type,
		"adapters", len(adapters))
	return &App{
		Assistant: service.New(p, in, store, dim, log),
		Registry:  reg,
		memory:    mem,
	}, nil
}

// Close releases the memory store.
func (a *App) Close() error {
	if a.memory == nil {
		return nil
	}
	return a.memory.Close()
}

func buildCompleter(ctx context.Context, c config.LLMConfig) (llm.Completer, error) {
	if c.Provider == "mock" {
		return mock.New(), nil
	}
	key, err := config.RequireEnv(c.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	switch c.Provider {
	case "openrouter", "openai":
		return llmopenai.NewClient(llmopenai.Config{
			BaseURL:    c.BaseURL,
			APIKey:     key,
			Model:      c.Model,
			Timeout:    seconds(c.TimeoutSecs),
			OpenRouter: c.Provider == "openrouter",
			Referer:    c.Referer,
			AppName:    c.AppName,
		}), nil
	case "gemini":
		return llmgemini.NewClient(ctx, key, c.Model)
	case "anthropic":
		return claude.NewClient(key, c.Model), nil
	}
	return nil, fmt.Errorf("unknown provider: %s", c.Provider)
}

func buildEmbedder(ctx context.Context, c config.EmbedderConfig) (domain.Embedder, error) {
	switch c.Type {
	case "hashing", "":
		return hashing.NewEmbedder(c.Dimension)
	case "openai":
		key, err := config.RequireEnv(c.OpenAI.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return embedopenai.NewClient(embedopenai.Config{
			BaseURL: c.OpenAI.BaseURL,
			APIKey:  key,
			Model:   c.OpenAI.Model,
			Timeout: seconds(c.OpenAI.TimeoutSecs),
		}), nil
	case "gemini":
		key, err := config.RequireEnv(c.Gemini.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return gemini.NewEmbedder(ctx, key, c.Gemini.Model, c.Gemini.Dimension)
	}
	return nil, fmt.Errorf("unknown embedder: %s", c.Type)
}

// probeDimension embeds a short text when the embedder learns its size from
// the provider.
func probeDimension(ctx context.Context, e domain.Embedder) (int, error) {
	if d := e.Dimension(); d > 0 {
		return d, nil
	}
	vecs, err := e.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, errors.New("embedder returned no vector")
	}
	return len(vecs[0]), nil
}

func buildVectorStore(c config.VectorStoreConfig) (domain.VectorStore, error) {
	switch c.Type {
	case "memory", "":
		return vsmemory.NewStorage(), nil
	case "qdrant":
		var key string
		if c.Qdrant.APIKeyEnv != "" {
			k, err := config.RequireEnv(c.Qdrant.APIKeyEnv)
			if err != nil {
				return nil, err
			}
			key = k
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        c.Qdrant.URL,
			APIKey:     key,
			Collection: c.Qdrant.Collection,
			Timeout:    seconds(c.Qdrant.TimeoutSecs),
		}), nil
	}
	return nil, fmt.Errorf("unknown vector store: %s", c.Type)
}

func buildMemory(c config.MemoryConfig) (*memory.Service, error) {
	var store domain.MemoryStore
	switch c.Type {
	case "memory", "":
		store = inmem.New()
	case "badger":
		s, err := badger.Open(c.Path)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown memory store: %s", c.Type)
	}
	return memory.NewService(store, c.RecentWindow, c.RelevantTurn), nil
}

func buildWebSearcher(c config.WebSearchConfig) (domain.WebSearcher, error) {
	switch c.Type {
	case "none":
		return nil, nil
	case "duckduckgo", "":
		return web.NewDuckDuckGo(c.BaseURL, seconds(c.TimeoutSecs)), nil
	case "firecrawl":
		key, err := config.RequireEnv(c.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return web.NewFirecrawl(c.BaseURL, key, seconds(c.TimeoutSecs)), nil
	}
	return nil, fmt.Errorf("unknown web search: %s", c.Type)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
