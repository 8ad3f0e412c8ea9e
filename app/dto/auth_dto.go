// Package dto contains Data Transfer Objects for API request and response structures
package dto

// RegisterRequest represents the signup payload, accepted as a form or JSON
type RegisterRequest struct {
	FirstName string `json:"first_name" form:"first_name" validate:"required,not_blank,max=255" example:"Maria"`
	LastName  string `json:"last_name" form:"last_name" validate:"max=255" example:"Silva"`
	Phone     string `json:"phone" form:"phone" validate:"required,phone_digits" example:"11999990000"`
	Password  string `json:"password" form:"password" validate:"required,min=6,max_bytes=72" example:"secret123"`
}

// RegisterResponse is returned after a successful signup
type RegisterResponse struct {
	UserID uint   `json:"user_id" example:"1"`
	UUID   string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// LoginRequest represents the login payload, accepted as a form or JSON
type LoginRequest struct {
	Phone    string `json:"phone" form:"phone" validate:"required" example:"11999990000"`
	Password string `json:"password" form:"password" validate:"required,max=72" example:"secret123"`
}

// UserSummary is the identity snapshot exposed to clients
type UserSummary struct {
	FirstName string `json:"first_name" example:"Maria"`
	Phone     string `json:"phone" example:"11999990000"`
}

// LoginResponse carries the issued credential
type LoginResponse struct {
	AccessToken string      `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string      `json:"token_type" example:"bearer"`
	ExpiresAt   string      `json:"expires_at" example:"2025-12-20T00:30:00Z"`
	User        UserSummary `json:"user"`
}

// MeResponse describes the authenticated caller
type MeResponse struct {
	UserID    uint   `json:"user_id" example:"1"`
	FirstName string `json:"first_name" example:"Maria"`
	Phone     string `json:"phone" example:"11999990000"`
}
