package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
	"research/internal/ingest"
)

func TestAskJSONOffline(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("llm:\n  provider: mock\nweb_search:\n  type: none\nacademic:\n  type: none\nlog:\n  level: error\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"ask", "--config", cfg, "--json", "--thread", "t1", "What", "is", "this?"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	var resp domain.FinalResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, domain.StatusInsufficientContext, resp.Status)
	assert.NotEmpty(t, resp.TraceID)
}

func TestPrintAnswer(t *testing.T) {
	var b strings.Builder
	printAnswer(&b, &domain.FinalResponse{
		Status:     domain.StatusOK,
		SourceUsed: "RAG",
		Answer:     "Adam.",
		Confidence: 0.8,
		Citations:  []domain.Citation{{Label: "Paper §3", Locator: "page 4"}},
	})
	assert.Contains(t, b.String(), "[OK] source=RAG confidence=0.80")
	assert.Contains(t, b.String(), "  - Paper §3 (page 4)")
}

func TestPrintReport(t *testing.T) {
	var b strings.Builder
	printReport(&b, ingest.Report{Documents: []ingest.DocumentReport{
		{Path: "a.pdf", Status: ingest.StatusProcessed, Chunks: 4},
		{Path: "b.pptx", Status: ingest.StatusFailed, Error: "unsupported", FailureKind: ingest.FailureParsing},
	}})
	assert.Contains(t, b.String(), "ok      a.pdf (4 chunks)")
	assert.Contains(t, b.String(), "failed  b.pptx: unsupported")
	assert.Contains(t, b.String(), ingest.FailureParsing.Message())
}
