package handler

import "github.com/scoutme/scoutme-api/internal/core/ports"

// ErrorResponse is the standard error envelope returned on all 4xx/5xx responses.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// --- Request types ---

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	UserType string `json:"userType" validate:"required,oneof=player recruiter admin"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"       validate:"required,len=64,hexadecimal"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

// --- Response types ---

type messageResponse struct {
	Message string `json:"message"`
}

type messageEmailResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
}

type loginResponse struct {
	AccessToken string           `json:"accessToken"`
	User        ports.PublicUser `json:"user"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type userResponse struct {
	User ports.PublicUser `json:"user"`
}
