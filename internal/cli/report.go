package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citegame/internal/llm"
	"github.com/ppiankov/citegame/internal/logging"
	"github.com/ppiankov/citegame/internal/report"
	"github.com/ppiankov/citegame/internal/view"
)

var (
	reportOut   string
	reportJSON  string
	reportServe string
	reportTitle string
	llmEnabled  bool
	llmProvider string
	llmModel    string
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the end-of-game report",
	Long: `Report fetches the scoreboard and every team's review brief and writes a
single self-contained HTML page: score cards, detection rates, detail
tables and each annotated brief with its diffs.

Example:
  citegame report
  citegame report --out results.html --json results.json
  citegame report --serve :8080
  citegame report --llm --llm-provider ollama --llm-model llama3`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportOut, "out", "citegame-report.html", "output HTML path (relative paths go to output.dir)")
	reportCmd.Flags().StringVar(&reportJSON, "json", "", "also write the report data as JSON")
	reportCmd.Flags().StringVar(&reportServe, "serve", "", "serve the report on this address instead of exiting, e.g. :8080")
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "report title")

	reportCmd.Flags().BoolVar(&llmEnabled, "llm", false, "add an LLM-written recap")
	reportCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, ollama); default from config")
	reportCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name; default from config")
}

func runReport(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	if err := requireSession(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	target := view.NewMemoryTarget(nil)
	review := view.NewReview(client, target, client.GameID())
	review.Concurrency = cfg.Concurrency.Workers
	defer review.Close()

	if err := review.Load(ctx); err != nil {
		return err
	}
	in, err := review.ReportInput(ctx)
	if err != nil {
		return err
	}
	in.Title = reportTitle
	logging.Info("collected review briefs", "teams", len(in.Reviews))

	if llmEnabled {
		llmCfg := llm.ConfigFromModel(cfg.LLM)
		if llmProvider != "" {
			llmCfg.Provider = llmProvider
		}
		if llmModel != "" {
			llmCfg.Model = llmModel
		}
		in.Recap = recap(ctx, llmCfg, in)
	}

	builder := report.NewBuilder()
	doc, err := builder.Build(in)
	if err != nil {
		return err
	}
	var jsonDoc bytes.Buffer
	if err := builder.WriteJSON(&jsonDoc, in); err != nil {
		return err
	}

	if reportServe != "" {
		return serveReport(ctx, reportServe, doc, jsonDoc.Bytes())
	}

	htmlPath := outputPath(cfg.Output.Dir, reportOut)
	if err := writeFile(htmlPath, doc); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Report written: "+htmlPath))

	if reportJSON != "" {
		jsonPath := outputPath(cfg.Output.Dir, reportJSON)
		if err := writeFile(jsonPath, jsonDoc.Bytes()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ Report data written: "+jsonPath))
	}
	return nil
}

// recap asks the configured model for a recap. Failures leave the report without one.
func recap(ctx context.Context, cfg llm.Config, in report.Input) string {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		logging.Warn("LLM recap disabled", "err", err)
		return ""
	}

	resp, err := provider.Recap(ctx, llm.RecapRequest{
		Scoreboard:  in.Scoreboard,
		Reviews:     in.Reviews,
		CitationIDs: llm.CitationIDs(in.Reviews),
	})
	if err != nil {
		logging.Warn("LLM recap failed", "provider", provider.Name(), "err", err)
		return ""
	}
	logging.Info("LLM recap generated", "provider", provider.Name(), "model", resp.Model, "tokens", resp.TokensUsed)
	return resp.Text
}

func outputPath(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
