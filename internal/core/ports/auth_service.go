package ports

import (
	"context"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to AuthService.Register.
type RegisterInput struct {
	Email    string
	Password string
	UserType domain.UserType
}

// RegisterResult never carries the password hash or the raw verification token.
type RegisterResult struct {
	UserID string
	Email  string
}

// PublicUser is the minimal user view returned to clients.
type PublicUser struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	UserType      domain.UserType `json:"userType"`
	EmailVerified bool            `json:"emailVerified"`
}

// ToPublicUser strips everything but the public fields.
func ToPublicUser(u *domain.User) PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		UserType:      u.UserType,
		EmailVerified: u.EmailVerified,
	}
}

// LoginResult carries the token pair. The caller places RefreshToken in a cookie.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         PublicUser
}

// AuthService defines the authentication and session-lifecycle use cases.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetUser(ctx context.Context, id string) (*PublicUser, error)
}
