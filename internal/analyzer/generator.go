package analyzer

import (
	"context"
	"errors"
)

// ErrGeneratorUnavailable is returned when no generative model has been configured.
var ErrGeneratorUnavailable = errors.New("generative model is not configured")

// Generator sends one prompt to a language model and returns the raw reply text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// UnavailableGenerator stands in when GEMINI_API_KEY is unset, so OCR-only
// tooling still starts. Every call fails with ErrGeneratorUnavailable.
type UnavailableGenerator struct{}

func (UnavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", ErrGeneratorUnavailable
}
