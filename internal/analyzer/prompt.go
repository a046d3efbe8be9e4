package analyzer

import (
	"fmt"
	"strings"
)

// DefaultTextLimit caps how much OCR text is sent to the model.
const DefaultTextLimit = 5000

const promptTemplate = `You are a food safety expert. Analyze the ingredient list below, which was read by OCR from a food product label and may contain recognition mistakes.

Label text:
"""
%s
"""

Respond with ONLY a JSON object in exactly this shape, with no markdown and no other text:
{
  "productName": "product name, or \"Unknown\" if it is not on the label",
  "keyIngredients": [
    {"name": "ingredient as written on the label", "purpose": "why it is used", "concern": "health concern, or empty"}
  ],
  "safetyRating": <number from 1 (avoid) to 10 (very safe)>,
  "hazardLevel": "Low" | "Medium" | "High",
  "healthWarnings": ["short warning"],
  "recommendations": ["short recommendation"]
}`

// BuildPrompt embeds the OCR text, cut to limit characters, in the analysis instructions.
func BuildPrompt(text string, limit int) string {
	return fmt.Sprintf(promptTemplate, Truncate(strings.TrimSpace(text), limit))
}

// Truncate keeps the first limit characters of s. A non-positive limit falls back to DefaultTextLimit.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
