package ports

import "github.com/scoutme/scoutme-api/internal/core/domain"

// PasswordHasher is a one-way, salted, slow credential hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Verify never returns an error; any failure is a mismatch.
	Verify(plain, hash string) bool
}

// AccessClaims is the identity embedded in an access token.
type AccessClaims struct {
	UserID   string
	Email    string
	UserType domain.UserType
}

// TokenCodec signs and verifies access and refresh tokens.
type TokenCodec interface {
	SignAccess(claims AccessClaims) (string, error)
	SignRefresh(userID string) (string, error)
	VerifyAccess(token string) (*AccessClaims, error)
	VerifyRefresh(token string) (string, error)
}

// TokenGenerator produces opaque single-use tokens.
type TokenGenerator interface {
	Generate() (string, error)
}
