package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Supported upload MIME types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWEBP = "image/webp"
)

// UploadedImage is the original image stored for one request.
type UploadedImage struct {
	SourcePath   string `json:"source_path"`
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
	OriginBase64 bool   `json:"origin_base64"`
}

// IngredientAnalysis is decoded from the generative model's JSON reply.
type IngredientAnalysis struct {
	ProductName       string          `json:"productName"`
	KeyIngredients    []KeyIngredient `json:"keyIngredients"`
	SafetyRating      *Rating         `json:"safetyRating,omitempty"`
	HazardLevel       string          `json:"hazardLevel,omitempty"`
	HealthWarnings    []string        `json:"healthWarnings,omitempty"`
	Recommendations   []string        `json:"recommendations,omitempty"`
	RatingExplanation string          `json:"ratingExplanation,omitempty"`
}

// KeyIngredient describes one notable ingredient.
// FoundInLabel is computed locally against the OCR text.
type KeyIngredient struct {
	Name         string `json:"name"`
	Purpose      string `json:"purpose,omitempty"`
	Concern      string `json:"concern,omitempty"`
	FoundInLabel bool   `json:"foundInLabel"`
}

// UnmarshalJSON accepts either a bare ingredient name or an object.
func (k *KeyIngredient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*k = KeyIngredient{Name: name}
		return nil
	}

	type alias KeyIngredient
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*k = KeyIngredient(aux)
	return nil
}

// Rating is a numeric safety score. Models sometimes quote it ("7" or "7/10").
type Rating float64

func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if i := strings.Index(s, "/"); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("rating %q is not numeric", s)
		}
		*r = Rating(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Rating(v)
	return nil
}

// Value returns the score as a float.
func (r Rating) Value() float64 {
	return float64(r)
}

// LabelReport is what a successful pipeline run renders.
type LabelReport struct {
	RequestID         string              `json:"request_id"`
	ImagePath         string              `json:"image_path"`
	ExtractedText     string              `json:"extracted_text"`
	Analysis          *IngredientAnalysis `json:"analysis"`
	ProcessingTimeSec float64             `json:"processing_time_sec"`
}

// OCRReport is returned by the text-only diagnostics pipeline.
type OCRReport struct {
	RequestID         string       `json:"request_id"`
	ImagePath         string       `json:"image_path"`
	Quality           ImageQuality `json:"quality"`
	OCRResult         OCRResult    `json:"ocr_result"`
	ProcessingTimeSec float64      `json:"processing_time_sec"`
}

// ImageQuality holds sharpness and brightness hints for the normalized image.
type ImageQuality struct {
	LaplacianVar float64 `json:"laplacian_variance"`
	Brightness   float64 `json:"brightness"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Blurry       bool    `json:"blurry"`
	TooDark      bool    `json:"too_dark"`
	TooBright    bool    `json:"too_bright"`
}

// OCRResult represents OCR output and, when expected text is supplied, its error rates.
type OCRResult struct {
	ExtractedText string  `json:"extracted_text"`
	ExpectedText  string  `json:"expected_text,omitempty"`
	MatchScore    float64 `json:"match_score,omitempty"`
	WER           float64 `json:"word_error_rate,omitempty"`
	CER           float64 `json:"character_error_rate,omitempty"`
}
