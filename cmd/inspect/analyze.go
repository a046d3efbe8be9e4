package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/ingest"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Extract the ingredient list and print the safety analysis as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := loadContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Config().RequireAPIKey(); err != nil {
		return err
	}

	report, err := c.Service().Inspect(ctx, newRequestID(), ingest.Source{Path: args[0]})
	if err != nil {
		return fmt.Errorf("%s: %w", apperrors.UserMessage(err), err)
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
