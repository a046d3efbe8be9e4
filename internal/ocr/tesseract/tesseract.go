// Package tesseract implements ocr.Extractor on top of libtesseract via gosseract.
// It needs cgo and the tesseract shared libraries at build time.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/internal/ocr"
)

type Engine struct {
	opts ocr.Options
}

func New(opts ocr.Options) *Engine {
	return &Engine{opts: opts}
}

// Version reports the linked libtesseract version.
func Version() string {
	return gosseract.Version()
}

// ExtractText runs a single recognition pass. gosseract clients are not safe for
// concurrent use, so every call gets its own client. The call cannot be interrupted
// once tesseract starts; a cancelled context only releases the caller.
func (e *Engine) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		text, err := e.recognize(imagePath)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		logger.WithFields(logrus.Fields{"image": imagePath}).Warn("OCR abandoned by caller")
		return "", ctx.Err()
	}
}

func (e *Engine) recognize(imagePath string) (string, error) {
	e.opts.Report("initializing tesseract", 0)

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.opts.Languages()...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if e.opts.SingleBlock {
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			return "", fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if e.opts.PreserveInterwordSpaces {
		if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
			return "", fmt.Errorf("set preserve_interword_spaces: %w", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	e.opts.Report("recognizing text", 0.5)
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	e.opts.Report("recognizing text", 1)

	return strings.TrimSpace(text), nil
}
