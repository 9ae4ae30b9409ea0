package api

import "time"

// TokenResponse represents the response payload for a renderer token refresh
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ViewerID  string    `json:"viewer_id"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	SessionStatus string `json:"session_status"`
	Clients       int    `json:"clients"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
