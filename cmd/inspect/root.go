package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anime-shed/label-inspector-go/internal/config"
	"github.com/anime-shed/label-inspector-go/internal/container"
	"github.com/anime-shed/label-inspector-go/internal/logger"
)

var (
	uploadDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Read and assess food ingredient labels",
	Long:         "inspect runs the same normalize, OCR and analysis pipeline as the web server against a local image.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&uploadDir, "upload-dir", "", "directory for stored copies (defaults to UPLOAD_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadContainer builds the pipeline from the environment and the global flags.
func loadContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if uploadDir != "" {
		cfg.UploadDir = filepath.Clean(uploadDir)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger.SetLevel(cfg.LogLevel)

	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return c, nil
}

func newRequestID() string {
	return "cli-" + uuid.NewString()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
