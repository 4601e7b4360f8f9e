package domain

import "errors"

var (
	ErrEmailDuplicate           = errors.New("an account with this email already exists")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrEmailNotVerified         = errors.New("email address not verified")
	ErrAccessTokenExpired       = errors.New("access token expired")
	ErrInvalidAccessToken       = errors.New("invalid access token")
	ErrAccessTokenMissing       = errors.New("missing access token")
	ErrRefreshTokenExpired      = errors.New("refresh token expired")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrRefreshTokenMissing      = errors.New("missing refresh token")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrVerificationTokenExpired = errors.New("verification token expired")
	ErrVerificationTokenMissing = errors.New("missing verification token")
	ErrEmailAlreadyVerified     = errors.New("email already verified")
	ErrInvalidResetToken        = errors.New("invalid reset token")
	ErrResetTokenExpired        = errors.New("reset token expired")
	ErrRateLimitExceeded        = errors.New("too many requests, try again later")
	ErrEmailSendFailed          = errors.New("failed to send email")
	ErrConcurrentUpdate         = errors.New("record changed concurrently, retry the request")
	ErrForbidden                = errors.New("access forbidden")
	ErrInvalidUserType          = errors.New("invalid user type")
)
