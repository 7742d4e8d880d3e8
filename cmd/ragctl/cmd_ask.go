package main

import (
	"fmt"
	"strings"

	"research-agent-be/internal/bootstrap"
	"research-agent-be/pkg/observability"
	"research-agent-be/pkg/rag/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	askThread string
	askDocs   string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question with the in-process pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askThread, "thread", "", "continue an existing thread (needs THREAD_STORE=redis to outlive the process)")
	askCmd.Flags().StringVar(&askDocs, "docs", "", "folder to index before answering (defaults to DOCS_FOLDER)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger(cfg)
	ctx := cmd.Context()

	var sink observability.Sink = observability.NopSink{}
	if verbose {
		sink = observability.NewLogSink(log)
	}
	core, err := bootstrap.NewCore(ctx, cfg, sink, log)
	if err != nil {
		return err
	}
	defer core.Close()

	docs := askDocs
	if docs == "" {
		docs = cfg.App.DocsFolder
	}
	if docs != "" {
		chunks, reports, err := core.Ingestor.LoadDirectory(ctx, docs)
		if err != nil {
			color.Yellow("Skipping documents: %v", err)
		} else if len(chunks) > 0 {
			if err := core.Engine.Index(ctx, chunks); err != nil {
				return fmt.Errorf("failed to index %s: %w", docs, err)
			}
			color.HiBlack("Indexed %d chunks from %d files in %s", len(chunks), len(reports), docs)
		}
	}

	answer := core.Orchestrator.Answer(ctx, orchestrator.Request{
		Question: strings.Join(args, " "),
		ThreadID: askThread,
	})

	fmt.Println()
	color.Cyan("Route: %s", answer.Route)
	if answer.Degraded {
		color.Yellow("Degraded: %s", strings.Join(answer.Notices, "; "))
	}
	fmt.Println()
	fmt.Println(answer.Text)

	if len(answer.References) > 0 {
		fmt.Println()
		color.Green("References")
		for i, ref := range answer.References {
			fmt.Printf("  [%d] %s (%.2f)\n", i+1, ref.Source, ref.RelevanceScore)
			color.HiBlack("      %s", ref.Snippet)
		}
	}
	fmt.Println()
	color.HiBlack("thread: %s", answer.ThreadID)
	return nil
}
