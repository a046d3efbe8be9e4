package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/ingest"
)

var (
	expectedText string
	ocrJSON      bool
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Print the text recognized on a label",
	Long: `ocr normalizes the image and runs text recognition without calling the model.
With --expected the output also carries word and character error rates.`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

func init() {
	ocrCmd.Flags().StringVarP(&expectedText, "expected", "e", "", "reference text to score the result against")
	ocrCmd.Flags().BoolVar(&ocrJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(ocrCmd)
}

func runOCR(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := loadContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Service().ExtractText(ctx, newRequestID(), ingest.Source{Path: args[0]}, expectedText)
	if err != nil {
		return fmt.Errorf("%s: %w", apperrors.UserMessage(err), err)
	}

	if ocrJSON || expectedText != "" {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), report.OCRResult.ExtractedText)
	return err
}
