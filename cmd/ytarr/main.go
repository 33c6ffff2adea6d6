package main

import (
	"fmt"
	"os"

	"github.com/amaumene/ytarr/internal/config"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ytarr",
		Short:         "Video download service with tiered fallbacks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newDownloadCommand(),
		newStatusCommand(),
		newFormatsCommand(),
		newUpdateCommand(),
	)

	return root
}

// loadCLI loads configuration for one-shot commands. Logs go to stderr so
// stdout carries only the command output.
func loadCLI() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, utils.NewLoggerWithOutput(cfg.LogLevel, os.Stderr), nil
}
