// Package ocr defines the text extraction contract used by the label pipeline
// and the accuracy measures reported by the OCR diagnostics endpoint.
package ocr

import (
	"context"
	"strings"
)

// Extractor recognizes the text in an image file.
type Extractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// ProgressFunc receives engine status updates. It is informational only.
type ProgressFunc func(status string, progress float64)

// Options configures an OCR engine.
type Options struct {
	Language string
	// Treat the image as one uniform block of text, as ingredient lists usually are.
	SingleBlock             bool
	PreserveInterwordSpaces bool
	Progress                ProgressFunc
}

// DefaultOptions returns English, single-block recognition with interword spacing kept.
func DefaultOptions() Options {
	return Options{
		Language:                "eng",
		SingleBlock:             true,
		PreserveInterwordSpaces: true,
	}
}

// WithLanguage sets the tesseract language code, e.g. "eng" or "eng+fra".
func (o Options) WithLanguage(lang string) Options {
	if lang = strings.TrimSpace(lang); lang != "" {
		o.Language = lang
	}
	return o
}

// WithProgress attaches a progress callback.
func (o Options) WithProgress(fn ProgressFunc) Options {
	o.Progress = fn
	return o
}

// Languages splits a "+"-joined language spec.
func (o Options) Languages() []string {
	var langs []string
	for _, l := range strings.Split(o.Language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return []string{"eng"}
	}
	return langs
}

// Report calls the progress callback if one is set.
func (o Options) Report(status string, progress float64) {
	if o.Progress != nil {
		o.Progress(status, progress)
	}
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, imagePath string) (string, error)

func (f ExtractorFunc) ExtractText(ctx context.Context, imagePath string) (string, error) {
	return f(ctx, imagePath)
}
