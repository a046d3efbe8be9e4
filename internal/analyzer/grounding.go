package analyzer

import (
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"

	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// maxEditRatio is the share of a name's length that may differ from the label text.
const maxEditRatio = 0.2

// MarkFoundInLabel sets FoundInLabel on every key ingredient whose name appears
// in the label text, allowing for small OCR mistakes.
func MarkFoundInLabel(analysis *models.IngredientAnalysis, labelText string) {
	if analysis == nil {
		return
	}
	tokens := tokenize(labelText)
	for i := range analysis.KeyIngredients {
		analysis.KeyIngredients[i].FoundInLabel = FoundInText(analysis.KeyIngredients[i].Name, tokens)
	}
}

// FoundInText reports whether name fuzzy-matches any window of the tokenized text.
func FoundInText(name string, tokens []string) bool {
	want := tokenize(name)
	if len(want) == 0 || len(tokens) < len(want) {
		return false
	}
	target := strings.Join(want, " ")
	budget := int(float64(len([]rune(target))) * maxEditRatio)

	for i := 0; i+len(want) <= len(tokens); i++ {
		window := strings.Join(tokens[i:i+len(want)], " ")
		if window == target || levenshtein.Distance(window, target) <= budget {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
