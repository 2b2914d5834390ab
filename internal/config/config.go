package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a required collaborator has no API key.
var ErrMissingCredential = errors.New("missing credential")

// LLMConfig selects the language-model provider used for generation,
// evaluation and synthesis.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Referer           string  `yaml:"referer"`
	AppName           string  `yaml:"app_name"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	BatchSize int                   `yaml:"batch_size"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini    *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryConfig selects the conversation memory backend.
type MemoryConfig struct {
	Type         string `yaml:"type"`
	Path         string `yaml:"path"`
	RecentWindow int    `yaml:"recent_window"`
	RelevantTurn int    `yaml:"relevant_turns"`
}

// WebSearchConfig selects the live web search backend.
type WebSearchConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Limit       int    `yaml:"limit"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AcademicConfig configures the academic paper search.
type AcademicConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url"`
	Limit       int    `yaml:"limit"`
	MaxKeywords int    `yaml:"max_keywords"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PipelineConfig tunes the query pipeline.
type PipelineConfig struct {
	TopK               int `yaml:"top_k"`
	AdapterTimeoutSecs int `yaml:"adapter_timeout_secs"`
	MaxRetries         int `yaml:"max_retries"`
	QueryMemoryLength  int `yaml:"query_memory_length"`
	AnswerMemoryLength int `yaml:"answer_memory_length"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Memory      MemoryConfig      `yaml:"memory"`
	WebSearch   WebSearchConfig   `yaml:"web_search"`
	Academic    AcademicConfig    `yaml:"academic"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// AdapterTimeout returns the per-adapter timeout.
func (c *AppConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Pipeline.AdapterTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/research/config.yaml.
// If neither exists, it writes defaults to ~/.config/research/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RequireEnv resolves a credential from the named environment variable.
func RequireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%w: set %s", ErrMissingCredential, name)
	}
	return v, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "research", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := baseConfig()
	applyConfigDefaults(cfg)
	return cfg
}

// baseConfig holds the type selections only; provider-specific defaults are
// filled after the YAML is decoded so they follow the chosen provider.
func baseConfig() *AppConfig {
	return &AppConfig{
		LLM:         LLMConfig{Provider: "openrouter"},
		Embedder:    EmbedderConfig{Type: "hashing"},
		Chunker:     ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Memory:      MemoryConfig{Type: "memory"},
		WebSearch:   WebSearchConfig{Type: "duckduckgo"},
		Academic:    AcademicConfig{Type: "arxiv"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Log:         LogConfig{Level: "info"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	applyLLMDefaults(&cfg.LLM)
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 512
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Embedder.Gemini.Model == "" {
			cfg.Embedder.Gemini.Model = "gemini-embedding-001"
		}
		if cfg.Embedder.Gemini.Dimension == 0 {
			cfg.Embedder.Gemini.Dimension = 768
		}
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "research_assistant"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Memory.Type == "" {
		cfg.Memory.Type = "memory"
	}
	if cfg.Memory.Type == "badger" && cfg.Memory.Path == "" {
		cfg.Memory.Path = "./data/memory"
	}
	if cfg.Memory.RecentWindow == 0 {
		cfg.Memory.RecentWindow = 6
	}
	if cfg.Memory.RelevantTurn == 0 {
		cfg.Memory.RelevantTurn = 4
	}
	if cfg.WebSearch.Limit == 0 {
		cfg.WebSearch.Limit = 5
	}
	if cfg.WebSearch.TimeoutSecs == 0 {
		cfg.WebSearch.TimeoutSecs = 20
	}
	if cfg.WebSearch.Type == "firecrawl" {
		if cfg.WebSearch.BaseURL == "" {
			cfg.WebSearch.BaseURL = "https://api.firecrawl.dev/v1"
		}
		if cfg.WebSearch.APIKeyEnv == "" {
			cfg.WebSearch.APIKeyEnv = "FIRECRAWL_API_KEY"
		}
	}
	if cfg.WebSearch.Type == "duckduckgo" && cfg.WebSearch.BaseURL == "" {
		cfg.WebSearch.BaseURL = "https://html.duckduckgo.com"
	}
	if cfg.Academic.Type == "arxiv" && cfg.Academic.BaseURL == "" {
		cfg.Academic.BaseURL = "https://export.arxiv.org"
	}
	if cfg.Academic.Limit == 0 {
		cfg.Academic.Limit = 5
	}
	if cfg.Academic.MaxKeywords == 0 {
		cfg.Academic.MaxKeywords = 4
	}
	if cfg.Academic.TimeoutSecs == 0 {
		cfg.Academic.TimeoutSecs = 20
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 3
	}
	if cfg.Pipeline.AdapterTimeoutSecs == 0 {
		cfg.Pipeline.AdapterTimeoutSecs = 60
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 2
	}
	if cfg.Pipeline.QueryMemoryLength == 0 {
		cfg.Pipeline.QueryMemoryLength = 1500
	}
	if cfg.Pipeline.AnswerMemoryLength == 0 {
		cfg.Pipeline.AnswerMemoryLength = 2000
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyLLMDefaults(c *LLMConfig) {
	if c.Provider == "" {
		c.Provider = "openrouter"
	}
	switch c.Provider {
	case "openrouter":
		if c.BaseURL == "" {
			c.BaseURL = "https://openrouter.ai/api/v1"
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "OPENROUTER_API_KEY"
		}
		if c.Model == "" {
			c.Model = "openai/gpt-4o-mini"
		}
		if c.Referer == "" {
			c.Referer = "https://github.com/research-assistant"
		}
		if c.AppName == "" {
			c.AppName = "Research Assistant"
		}
	case "openai":
		if c.BaseURL == "" {
			c.BaseURL = "https://api.openai.com/v1"
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "OPENAI_API_KEY"
		}
		if c.Model == "" {
			c.Model = "gpt-4o-mini"
		}
	case "gemini":
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "GEMINI_API_KEY"
		}
		if c.Model == "" {
			c.Model = "gemini-2.0-flash"
		}
	case "anthropic":
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if c.Model == "" {
			c.Model = "claude-3-5-haiku-latest"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
}
