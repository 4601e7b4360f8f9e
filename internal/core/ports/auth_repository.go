package ports

import (
	"context"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

// UserRepository defines persistence operations for user identity records.
//
// Finders return domain.ErrUserNotFound when nothing matches. Token and counter
// writes are single-row conditional updates and return domain.ErrConcurrentUpdate
// when the row changed since it was read.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	FindByResetToken(ctx context.Context, token string) (*domain.User, error)

	// MarkEmailVerified sets email_verified and clears the verification token
	// and its expiry in one write.
	MarkEmailVerified(ctx context.Context, id string) error
	// IssueVerificationToken rotates the verification token and stores the
	// updated resend counter.
	IssueVerificationToken(ctx context.Context, id string, issue domain.TokenIssue) error
	// IssueResetToken rotates the reset token and stores the updated request counter.
	IssueResetToken(ctx context.Context, id string, issue domain.TokenIssue) error
	// ResetPassword replaces the hash, clears the reset token and zeroes the
	// reset counter, but only while token is still the stored reset token.
	ResetPassword(ctx context.Context, id, token, passwordHash string) error
}

// UserLookup is the read-only capability the authorization layer depends on.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}
