package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"research/internal/domain"
	"research/internal/ingest"
	"research/internal/service"
	"research/internal/tui"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Index .pdf, .txt and .md documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Assistant.Ingest(cmd.Context(), args)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		if report.Processed() == 0 {
			return fmt.Errorf("no document was indexed")
		}
		return nil
	},
}

var (
	askUser   string
	askThread string
	askJSON   bool
	askFiles  []string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(askFiles) > 0 {
			report, err := a.Assistant.Ingest(cmd.Context(), askFiles)
			if err != nil {
				return err
			}
			printReport(cmd.ErrOrStderr(), report)
		}
		resp, err := a.Assistant.Ask(cmd.Context(), service.AskRequest{
			Query:    strings.Join(args, " "),
			UserID:   askUser,
			ThreadID: askThread,
		})
		if err != nil {
			return err
		}
		if askJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printAnswer(cmd.OutOrStdout(), resp)
		return nil
	},
}

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat [files...]",
	Short: "Index documents and open the interactive chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logPath := cfg.Log.File
		if logPath == "" {
			logPath = filepath.Join(os.TempDir(), "research.log")
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()

		a, err := setup(cmd.Context(), f)
		if err != nil {
			return err
		}
		defer a.Close()

		summary := fmt.Sprintf("Logging to %s", logPath)
		if len(args) > 0 {
			report, err := a.Assistant.Ingest(cmd.Context(), args)
			if err != nil {
				return err
			}
			summary = fmt.Sprintf("%d/%d documents indexed. %s", report.Processed(), len(report.Documents), report.Summary)
		}
		m := tui.New(cmd.Context(), a.Assistant, chatUser, summary)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector index diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Assistant.Initialize(cmd.Context()); err != nil {
			return err
		}
		st, err := a.Assistant.Status(cmd.Context())
		if err != nil {
			return err
		}
		diag, err := a.Assistant.Diagnose(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"state": st, "index": diag})
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "", "User id (default web_user)")
	askCmd.Flags().StringVar(&askThread, "thread", "", "Thread id; reuse it to continue a conversation")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
	askCmd.Flags().StringSliceVar(&askFiles, "file", nil, "Documents to index before answering")

	chatCmd.Flags().StringVar(&chatUser, "user", "cli_user", "User id for the chat session")
}

func printReport(w io.Writer, r ingest.Report) {
	for _, d := range r.Documents {
		if d.Status == ingest.StatusProcessed {
			fmt.Fprintf(w, "ok      %s (%d chunks)\n", d.Path, d.Chunks)
			continue
		}
		fmt.Fprintf(w, "failed  %s: %s\n        %s\n", d.Path, d.Error, d.FailureKind.Message())
	}
	if r.Summary != "" {
		fmt.Fprintf(w, "\nSummary:\n%s\n", r.Summary)
	}
}

func printAnswer(w io.Writer, r *domain.FinalResponse) {
	fmt.Fprintf(w, "[%s] source=%s confidence=%.2f\n\n", r.Status, r.SourceUsed, r.Confidence)
	if r.Answer != "" {
		fmt.Fprintln(w, r.Answer)
	}
	for _, m := range r.Missing {
		fmt.Fprintf(w, "missing: %s\n", m)
	}
	if len(r.Citations) > 0 {
		fmt.Fprintln(w, "\nCitations:")
		for _, c := range r.Citations {
			fmt.Fprintf(w, "  - %s (%s)\n", c.Label, c.Locator)
		}
	}
}
