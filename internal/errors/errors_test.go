package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "analysis failure uses fixed message",
			err:      NewAnalysisFailedError("AI analysis failed", errors.New("invalid character 'S'")),
			expected: AnalysisFailedMessage,
		},
		{
			name:     "wrapped analysis failure uses fixed message",
			err:      fmt.Errorf("pipeline: %w", NewAnalysisFailedError("model unavailable", nil)),
			expected: AnalysisFailedMessage,
		},
		{
			name:     "invalid input keeps its message",
			err:      NewInvalidInputError("Unsupported image type", nil),
			expected: "Unsupported image type",
		},
		{
			name:     "stage failure hides the cause",
			err:      NewStageFailureError("Failed to read text from image", errors.New("tesseract: leptonica error")),
			expected: "Failed to read text from image",
		},
		{
			name:     "internal error uses fallback",
			err:      NewInternalError("nil pointer", nil),
			expected: fallbackMessage,
		},
		{
			name:     "plain error uses fallback",
			err:      errors.New("boom"),
			expected: fallbackMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UserMessage(tt.err))
		})
	}
}

func TestNoImageProvided(t *testing.T) {
	err := NewNoImageProvidedError()

	assert.True(t, IsType(err, ErrorTypeInvalidInput))
	assert.ErrorIs(t, err, ErrNoImageProvided)
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(err))
	assert.Equal(t, http.StatusBadRequest, APIStatusCode(err))
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(NewStageFailureError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(NewAnalysisFailedError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(NewRenderFailureError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(errors.New("plain")))
}

func TestAppError_Error(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStageFailureError("could not store image", cause)

	assert.Equal(t, "stage_failure: could not store image (caused by: disk full)", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "render_failure: bad state", NewRenderFailureError("bad state", nil).Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("ocr: %w", NewStageFailureError("engine crashed", nil))

	assert.Equal(t, ErrorTypeStageFailure, KindOf(wrapped))
	assert.Equal(t, ErrorTypeInvalidInput, KindOf(NewNoImageProvidedError()))
	assert.Equal(t, ErrorTypeInternal, KindOf(errors.New("plain")))
}

func TestAPIStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, APIStatusCode(NewInvalidInputError("Invalid camera image data", nil)))
	assert.Equal(t, http.StatusBadRequest, APIStatusCode(fmt.Errorf("ingest: %w", NewNoImageProvidedError())))
	assert.Equal(t, http.StatusInternalServerError, APIStatusCode(NewStageFailureError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, APIStatusCode(NewAnalysisFailedError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, APIStatusCode(errors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	err := NewStageFailureError("Failed to read text from image", nil).WithDetails("last_stage=normalized")

	assert.Equal(t, "last_stage=normalized", DetailsOf(fmt.Errorf("wrapped: %w", err)))
	assert.Empty(t, DetailsOf(errors.New("plain")))
	assert.Equal(t, "Failed to read text from image", UserMessage(err))
}
