package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/api/handler"
	"github.com/scoutme/scoutme-api/internal/core/domain"
)

const (
	codeValidationFailed = "VALIDATION_FAILED"
	codeInternal         = "INTERNAL_ERROR"

	codeRefreshRateLimited = "REFRESH_RATE_LIMIT_EXCEEDED"
)

// apiError is a resolved error ready to be rendered.
type apiError struct {
	status     int
	code       string
	message    string
	retryAfter int
}

// domainErrors maps every expected domain error to its HTTP status and wire code.
// Order matters only for errors that wrap one another.
var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrEmailDuplicate, http.StatusConflict, "AUTH_EMAIL_DUPLICATE"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
	{domain.ErrEmailNotVerified, http.StatusUnauthorized, "AUTH_EMAIL_NOT_VERIFIED"},
	{domain.ErrAccessTokenMissing, http.StatusUnauthorized, "AUTH_TOKEN_MISSING"},
	{domain.ErrAccessTokenExpired, http.StatusUnauthorized, "AUTH_ACCESS_TOKEN_EXPIRED"},
	{domain.ErrInvalidAccessToken, http.StatusUnauthorized, "AUTH_INVALID_ACCESS_TOKEN"},
	{domain.ErrRefreshTokenMissing, http.StatusUnauthorized, "AUTH_REFRESH_TOKEN_MISSING"},
	{domain.ErrRefreshTokenExpired, http.StatusUnauthorized, "AUTH_REFRESH_TOKEN_EXPIRED"},
	{domain.ErrInvalidRefreshToken, http.StatusUnauthorized, "AUTH_INVALID_REFRESH_TOKEN"},
	{domain.ErrUserNotFound, http.StatusNotFound, "AUTH_USER_NOT_FOUND"},
	{domain.ErrVerificationTokenMissing, http.StatusBadRequest, "AUTH_VERIFICATION_TOKEN_MISSING"},
	{domain.ErrInvalidVerificationToken, http.StatusBadRequest, "AUTH_INVALID_VERIFICATION_TOKEN"},
	{domain.ErrVerificationTokenExpired, http.StatusBadRequest, "AUTH_VERIFICATION_TOKEN_EXPIRED"},
	{domain.ErrEmailAlreadyVerified, http.StatusBadRequest, "AUTH_EMAIL_ALREADY_VERIFIED"},
	{domain.ErrInvalidResetToken, http.StatusBadRequest, "AUTH_INVALID_RESET_TOKEN"},
	{domain.ErrResetTokenExpired, http.StatusBadRequest, "AUTH_RESET_TOKEN_EXPIRED"},
	{domain.ErrRateLimitExceeded, http.StatusTooManyRequests, "AUTH_RATE_LIMIT_EXCEEDED"},
	{domain.ErrEmailSendFailed, http.StatusBadGateway, "EMAIL_SEND_FAILED"},
	{domain.ErrConcurrentUpdate, http.StatusConflict, "AUTH_CONCURRENT_UPDATE"},
	{domain.ErrForbidden, http.StatusForbidden, "AUTH_FORBIDDEN"},
	{domain.ErrInvalidUserType, http.StatusUnprocessableEntity, codeValidationFailed},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status and AUTH_* code.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error", "code", "retryAfter"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ae := resolveError(err, log, c)
		if ae.retryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(ae.retryAfter))
		}

		body := handler.ErrorResponse{Error: ae.message, Code: ae.code, RetryAfter: ae.retryAfter}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(ae.status)
			return
		}
		_ = c.JSON(ae.status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) apiError {
	// Request body failed its validate tags.
	var ve *handler.ValidationError
	if errors.As(err, &ve) {
		return apiError{status: http.StatusUnprocessableEntity, code: codeValidationFailed, message: ve.Error()}
	}

	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return apiError{status: he.Code, code: httpCode(he.Code), message: fmt.Sprintf("%v", he.Message)}
	}

	// Known domain errors → deterministic HTTP codes.
	for _, de := range domainErrors {
		if !errors.Is(err, de.err) {
			continue
		}
		ae := apiError{status: de.status, code: de.code, message: de.err.Error()}
		if de.err == domain.ErrRateLimitExceeded {
			ae.retryAfter = retryAfterSeconds(err)
			var ra *domain.RetryAfterError
			if errors.As(err, &ra) && ra.Code != "" {
				ae.code = ra.Code
			}
		}
		return ae
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return apiError{status: http.StatusInternalServerError, code: codeInternal, message: "internal server error"}
}

// retryAfterSeconds uses the limiter's own hint when it has one and the fixed
// per-account window otherwise.
func retryAfterSeconds(err error) int {
	var ra *domain.RetryAfterError
	if errors.As(err, &ra) && ra.RetryAfter > 0 {
		return int(math.Ceil(ra.RetryAfter.Seconds()))
	}
	return domain.RetryAfterSeconds
}

// httpCode derives a wire code from a status, e.g. 404 -> NOT_FOUND.
func httpCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return codeInternal
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
