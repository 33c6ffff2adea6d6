package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/ytarr/internal/controllers"
	"github.com/amaumene/ytarr/internal/models"
	"github.com/spf13/cobra"
)

func newDownloadCommand() *cobra.Command {
	var req controllers.DownloadRequest

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a video, falling back through every tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			a := newApp(cfg, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Start acquiring the muxer while the catalog is fetched
			if _, err := a.resolver.Resolve(ctx, true, 0); err != nil {
				logger.WithError(err).Debug("Muxer not ready yet")
			}

			progress := make(chan models.ProgressEvent, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for event := range progress {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %5.1f%% %s\n", event.State, event.Percent, event.Message)
				}
			}()

			req.URL = args[0]
			req.Progress = progress
			result, err := a.downloads.Download(ctx, req)
			close(progress)
			<-done
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "output file base name (default: random id)")
	cmd.Flags().StringVarP(&req.OutputDir, "output", "o", "", "output directory (default: OUTPUT_DIR)")
	cmd.Flags().StringVarP(&req.Quality, "quality", "q", "", `"best" or a height like 1080p (default: DEFAULT_QUALITY)`)
	cmd.Flags().StringVar(&req.Container, "container", "", "merge container (default: DEFAULT_CONTAINER)")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <url>",
		Short: "Check whether a video is available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			result := newApp(cfg, logger).status.CheckStatus(cmd.Context(), args[0])
			return printJSON(cmd, result)
		},
	}
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats <url>",
		Short: "List the formats offered for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			catalog := newApp(cfg, logger).catalog.List(cmd.Context(), args[0])
			return printJSON(cmd, catalog)
		},
	}
}

func newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update the extractor to its latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			updated, err := newApp(cfg, logger).downloads.UpdateExtractor(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to update extractor: %w", err)
			}
			return printJSON(cmd, map[string]bool{"updated": updated})
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
