package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/api/handler"
	"github.com/scoutme/scoutme-api/internal/core/domain"
)

func renderError(t *testing.T, err error) (*httptest.ResponseRecorder, handler.ErrorResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body handler.ErrorResponse
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), jerr)
	}
	return rec, body
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	cases := []struct {
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
		{fmt.Errorf("mailgun: %w", domain.ErrEmailSendFailed), http.StatusBadGateway, "EMAIL_SEND_FAILED"},
		{domain.ErrConcurrentUpdate, http.StatusConflict, "AUTH_CONCURRENT_UPDATE"},
		{domain.ErrForbidden, http.StatusForbidden, "AUTH_FORBIDDEN"},
	}
	for _, tc := range cases {
		rec, body := renderError(t, tc.err)
		if rec.Code != tc.status || body.Code != tc.code {
			t.Errorf("%v: got %d %s, want %d %s", tc.err, rec.Code, body.Code, tc.status, tc.code)
		}
		if body.RetryAfter != 0 || rec.Header().Get("Retry-After") != "" {
			t.Errorf("%v: unexpected retry hint", tc.err)
		}
	}
}

func TestErrorHandler_RateLimit(t *testing.T) {
	rec, body := renderError(t, domain.ErrRateLimitExceeded)
	if rec.Code != http.StatusTooManyRequests || body.Code != "AUTH_RATE_LIMIT_EXCEEDED" {
		t.Fatalf("got %d %s", rec.Code, body.Code)
	}
	if body.RetryAfter != 3600 || rec.Header().Get("Retry-After") != "3600" {
		t.Fatalf("expected fixed 3600s hint, got %d / %q", body.RetryAfter, rec.Header().Get("Retry-After"))
	}

	rec, body = renderError(t, &domain.RetryAfterError{RetryAfter: 899500 * time.Millisecond})
	if rec.Code != http.StatusTooManyRequests || body.RetryAfter != 900 || rec.Header().Get("Retry-After") != "900" {
		t.Fatalf("expected limiter hint of 900s, got %d %d %q", rec.Code, body.RetryAfter, rec.Header().Get("Retry-After"))
	}
	if body.Code != "AUTH_RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected default code, got %s", body.Code)
	}

	rec, body = renderError(t, &domain.RetryAfterError{RetryAfter: time.Minute, Code: "REFRESH_RATE_LIMIT_EXCEEDED"})
	if rec.Code != http.StatusTooManyRequests || body.Code != "REFRESH_RATE_LIMIT_EXCEEDED" || body.RetryAfter != 60 {
		t.Fatalf("expected refresh code with 60s hint, got %d %s %d", rec.Code, body.Code, body.RetryAfter)
	}
}

func TestErrorHandler_Validation(t *testing.T) {
	rec, body := renderError(t, &handler.ValidationError{Fields: []string{"email is required"}})
	if rec.Code != http.StatusUnprocessableEntity || body.Code != "VALIDATION_FAILED" || body.Error != "email is required" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, body)
	}
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	rec, body := renderError(t, echo.ErrNotFound)
	if rec.Code != http.StatusNotFound || body.Code != "NOT_FOUND" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, body)
	}

	rec, body = renderError(t, echo.NewHTTPError(http.StatusBadRequest, "invalid payload"))
	if rec.Code != http.StatusBadRequest || body.Code != "BAD_REQUEST" || body.Error != "invalid payload" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, body)
	}
}

func TestErrorHandler_UnexpectedErrorIsHidden(t *testing.T) {
	rec, body := renderError(t, errors.New("mongo: connection pool exhausted"))
	if rec.Code != http.StatusInternalServerError || body.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, body)
	}
	if body.Error != "internal server error" {
		t.Fatalf("internal details leaked: %q", body.Error)
	}
}
