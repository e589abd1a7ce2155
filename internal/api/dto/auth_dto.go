package dto

import "time"

// LoginRequest payload for the operator login.
type LoginRequest struct {
	Password string `json:"password"`
	// Scope is "read" or "admin"; empty means admin.
	Scope string `json:"scope"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}
