package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is served by GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Time    string         `json:"time"`
	Stats   map[string]any `json:"stats,omitempty"`
}
