package main

import (
	"fmt"
	"os"

	"research-agent-be/internal/config"
	"research-agent-be/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Ask questions about research papers from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to the console")
	rootCmd.AddCommand(askCmd, ingestCmd, eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cliLogger(cfg *config.Config) logger.ILogger {
	if verbose {
		return logger.NewZapLogger(cfg.App.LogFilePath, false)
	}
	return logger.NewNopLogger()
}
