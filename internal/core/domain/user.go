package domain

import (
	"strings"
	"time"
)

// UserType is the immutable role chosen at registration.
type UserType string

const (
	UserTypePlayer    UserType = "player"
	UserTypeRecruiter UserType = "recruiter"
	UserTypeAdmin     UserType = "admin"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypePlayer, UserTypeRecruiter, UserTypeAdmin:
		return true
	}
	return false
}

// User is the persisted identity record.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	UserType      UserType  `json:"userType"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	VerificationToken        *string    `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	VerificationEmailCount   int        `json:"-"`
	LastVerificationEmail    *time.Time `json:"-"`

	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	ResetRequestCount int        `json:"-"`
	LastResetRequest  *time.Time `json:"-"`
}

// VerificationWindow returns the resend-verification counter state.
func (u *User) VerificationWindow() RequestWindow {
	return RequestWindow{Count: u.VerificationEmailCount, LastAt: u.LastVerificationEmail}
}

// ResetWindow returns the forgot-password counter state.
func (u *User) ResetWindow() RequestWindow {
	return RequestWindow{Count: u.ResetRequestCount, LastAt: u.LastResetRequest}
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Expired reports whether an optional expiry is absent or before now.
func Expired(expires *time.Time, now time.Time) bool {
	return expires == nil || expires.Before(now)
}
