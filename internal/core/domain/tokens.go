package domain

import "time"

const (
	AccessTokenTTL       = 15 * time.Minute
	RefreshTokenTTL      = 7 * 24 * time.Hour
	VerificationTokenTTL = 24 * time.Hour
	ResetTokenTTL        = time.Hour
)

// TokenIssue is the field group written when a verification or reset token
// is rotated. PrevCount is the counter value the write was computed from; the
// store only applies the update if it still holds.
type TokenIssue struct {
	Token     string
	ExpiresAt time.Time
	PrevCount int
	Window    RequestWindow
}
