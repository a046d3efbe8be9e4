package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/label-inspector-go/internal/errors"
	"github.com/anime-shed/label-inspector-go/internal/logger"
	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// Analyzer turns label text into a structured IngredientAnalysis.
type Analyzer interface {
	Analyze(ctx context.Context, labelText string) (*models.IngredientAnalysis, error)
}

// IngredientAnalyzer asks a Generator for a JSON assessment of the label text.
type IngredientAnalyzer struct {
	generator Generator
	textLimit int
}

func NewIngredientAnalyzer(generator Generator, textLimit int) *IngredientAnalyzer {
	if generator == nil {
		generator = UnavailableGenerator{}
	}
	if textLimit <= 0 {
		textLimit = DefaultTextLimit
	}
	return &IngredientAnalyzer{generator: generator, textLimit: textLimit}
}

// Analyze makes exactly one model call. Any failure, including an unparseable
// reply, comes back as an analysis_failed AppError.
func (a *IngredientAnalyzer) Analyze(ctx context.Context, labelText string) (*models.IngredientAnalysis, error) {
	prompt := BuildPrompt(labelText, a.textLimit)

	start := time.Now()
	reply, err := a.generator.Generate(ctx, prompt)
	log := logger.WithFields(logrus.Fields{
		"prompt_chars": len(prompt),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Error("Generative model call failed")
		msg := "AI analysis request failed"
		if errors.Is(err, ErrGeneratorUnavailable) {
			msg = "AI analysis is not configured"
		}
		return nil, apperrors.NewAnalysisFailedError(msg, err)
	}
	log.WithField("reply_chars", len(reply)).Debug("Generative model replied")

	analysis, err := ParseAnalysis(reply)
	if err != nil {
		return nil, err
	}
	MarkFoundInLabel(analysis, labelText)
	return analysis, nil
}

// ParseAnalysis decodes a model reply, with or without markdown fences.
func ParseAnalysis(reply string) (*models.IngredientAnalysis, error) {
	cleaned := StripCodeFences(reply)
	if cleaned == "" {
		return nil, apperrors.NewAnalysisFailedError("AI analysis returned an empty reply", nil)
	}

	if !strings.HasPrefix(cleaned, "{") {
		logger.WithField("reply_prefix", Truncate(cleaned, 200)).Warn("AI analysis reply is not a JSON object")
		return nil, apperrors.NewAnalysisFailedError("AI analysis returned malformed JSON", nil)
	}

	var analysis models.IngredientAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		logger.WithError(err).WithField("reply_prefix", Truncate(cleaned, 200)).Warn("Unparseable AI analysis reply")
		return nil, apperrors.NewAnalysisFailedError("AI analysis returned malformed JSON", err)
	}

	analysis.ProductName = strings.TrimSpace(analysis.ProductName)
	kept := analysis.KeyIngredients[:0]
	for _, ing := range analysis.KeyIngredients {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name != "" {
			kept = append(kept, ing)
		}
	}
	analysis.KeyIngredients = kept
	if analysis.ProductName == "" && len(analysis.KeyIngredients) == 0 && analysis.SafetyRating == nil {
		return nil, apperrors.NewAnalysisFailedError("AI analysis returned no product data", nil)
	}

	if analysis.SafetyRating != nil {
		analysis.RatingExplanation = RatingExplanation(analysis.SafetyRating.Value())
	}
	return &analysis, nil
}

// StripCodeFences removes a surrounding ```json ... ``` (or bare ```) wrapper.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string, e.g. "json"
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RatingExplanation maps a safety score to its fixed explanation.
func RatingExplanation(score float64) string {
	switch {
	case score >= 8:
		return "Very safe for regular consumption"
	case score >= 5:
		return "Moderately safe, consume in moderation"
	case score >= 3:
		return "Exercise caution, limit consumption"
	default:
		return "Not recommended for regular consumption"
	}
}
