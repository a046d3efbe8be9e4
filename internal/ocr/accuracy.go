package ocr

import (
	"math"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"

	"github.com/anime-shed/label-inspector-go/pkg/models"
)

// Compare scores extracted text against the text the caller expected to see.
// Both sides are lowercased and whitespace-collapsed first. Without expected
// text only ExtractedText is filled in.
func Compare(expected, extracted string) models.OCRResult {
	res := models.OCRResult{ExtractedText: strings.TrimSpace(extracted)}

	ref := strings.Fields(strings.ToLower(expected))
	if len(ref) == 0 {
		return res
	}
	res.ExpectedText = strings.TrimSpace(expected)
	hyp := strings.Fields(strings.ToLower(extracted))

	res.WER, _ = wer.WER(ref, hyp)
	res.CER = CharacterErrorRate(strings.Join(ref, " "), strings.Join(hyp, " "))
	res.MatchScore = math.Max(0, math.Min(1, 1-res.CER))
	return res
}

// CharacterErrorRate is the edit distance divided by the reference length in runes.
func CharacterErrorRate(reference, hypothesis string) float64 {
	n := len([]rune(reference))
	if n == 0 {
		if hypothesis == "" {
			return 0
		}
		return 1
	}
	return float64(levenshtein.Distance(reference, hypothesis)) / float64(n)
}
