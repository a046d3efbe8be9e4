package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidInput   ErrorType = "invalid_input"
	ErrorTypeStageFailure   ErrorType = "stage_failure"
	ErrorTypeAnalysisFailed ErrorType = "analysis_failed"
	ErrorTypeRenderFailure  ErrorType = "render_failure"
	ErrorTypeInternal       ErrorType = "internal"
)

// AnalysisFailedMessage replaces the raw message of every analysis failure shown to users.
const AnalysisFailedMessage = "We couldn't analyze the ingredients on this label. Please try again with a clearer photo."

const fallbackMessage = "Failed to process image"

// ErrNoImageProvided is the cause attached when a request carries neither a file nor a camera capture.
var ErrNoImageProvided = errors.New("no image provided")

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// WithDetails records internal context, such as the stage a request failed in.
// Details are logged, never shown to users.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewInvalidInputError is used for bad MIME types, malformed data URIs and missing images.
// The error view is served with 500 like every other pipeline failure; APIStatusCode
// narrows it to 400 for JSON clients.
func NewInvalidInputError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidInput,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNoImageProvidedError reports a request without any usable image.
func NewNoImageProvidedError() *AppError {
	return NewInvalidInputError("Please upload an image file", ErrNoImageProvided)
}

// NewStageFailureError wraps a normalizer or OCR engine failure.
func NewStageFailureError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStageFailure,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewAnalysisFailedError wraps a generative model or reply parsing failure.
func NewAnalysisFailedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeAnalysisFailed,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewRenderFailureError reports client-supplied view state that cannot be rendered.
func NewRenderFailureError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRenderFailure,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// As extracts the first AppError in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// KindOf returns the error kind, or internal for errors without one.
func KindOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// APIStatusCode is the status for JSON responses: invalid input is the client's
// fault there, everything else keeps GetStatusCode.
func APIStatusCode(err error) int {
	if IsType(err, ErrorTypeInvalidInput) {
		return http.StatusBadRequest
	}
	return GetStatusCode(err)
}

// DetailsOf returns the internal details attached to err, if any.
func DetailsOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Details
	}
	return ""
}

// UserMessage picks the message shown to end users. Causes are never exposed.
func UserMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return fallbackMessage
	}
	switch appErr.Type {
	case ErrorTypeAnalysisFailed:
		return AnalysisFailedMessage
	case ErrorTypeInternal:
		return fallbackMessage
	default:
		if appErr.Message == "" {
			return fallbackMessage
		}
		return appErr.Message
	}
}
