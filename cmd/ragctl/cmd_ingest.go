package main

import (
	"fmt"
	"sort"

	"research-agent-be/pkg/ingest"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	ingestChunkTokens int
	ingestOverlap     int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Chunk every document in a folder and print statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestChunkTokens, "chunk-tokens", ingest.DefaultChunkTokens, "tokens per chunk")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", ingest.DefaultOverlapTokens, "tokens repeated between neighbouring chunks")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	splitter, err := ingest.NewSplitter(ingestChunkTokens, ingestOverlap)
	if err != nil {
		return err
	}
	in := ingest.NewIngestor(splitter, cliLogger(cfg))

	chunks, reports, err := in.LoadDirectory(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	tokens := make(map[string]int)
	for _, c := range chunks {
		tokens[c.Source] += splitter.Count(c.Text)
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
	for _, r := range reports {
		if r.Err != nil {
			color.Red("  x %s: %v", r.Name, r.Err)
			continue
		}
		avg := 0
		if r.Chunks > 0 {
			avg = tokens[r.Name] / r.Chunks
		}
		color.Green("  + %s", r.Name)
		fmt.Printf("      %d chunks, ~%d tokens per chunk\n", r.Chunks, avg)
	}

	fmt.Println()
	color.Cyan("%d files, %d chunks", len(reports), len(chunks))
	return nil
}
