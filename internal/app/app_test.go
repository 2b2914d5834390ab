package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/config"
	"research/internal/domain"
	"research/internal/logger"
	"research/internal/service"
)

func parse(t *testing.T, yaml string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestBuildOffline(t *testing.T) {
	cfg := parse(t, `
llm:
  provider: mock
web_search:
  type: none
academic:
  type: none
`)
	cfg.Memory.Type = "badger"
	cfg.Memory.Path = filepath.Join(t.TempDir(), "memory")

	a, err := Build(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	resp, err := a.Assistant.Ask(context.Background(), service.AskRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInsufficientContext, resp.Status)
	assert.Equal(t, domain.StatusError, resp.ContextSources.Web.Status)
	assert.Equal(t, domain.StatusError, resp.ContextSources.Tool.Status)
}

func TestBuildRequiresCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := parse(t, "llm:\n  provider: openai\n")

	_, err := Build(context.Background(), cfg, logger.NewNop())
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestBuildRejectsUnknownVectorStore(t *testing.T) {
	cfg := parse(t, "llm:\n  provider: mock\nvector_store:\n  type: faiss\n")
	_, err := Build(context.Background(), cfg, logger.NewNop())
	assert.ErrorContains(t, err, "unknown vector store")
}
