package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error)
	loginFn    func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	refreshFn  func(ctx context.Context, token string) (string, error)
	verifyFn   func(ctx context.Context, token string) (*domain.User, error)
	resendErr  error
	forgotErr  error
	resetErr   error
	getUserFn  func(ctx context.Context, id string) (*ports.PublicUser, error)

	forgotCalls []string
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (string, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	return s.verifyFn(ctx, token)
}

func (s *stubAuthService) ResendVerification(context.Context, string) error { return s.resendErr }

func (s *stubAuthService) ForgotPassword(_ context.Context, email string) error {
	s.forgotCalls = append(s.forgotCalls, email)
	return s.forgotErr
}

func (s *stubAuthService) ResetPassword(context.Context, string, string) error { return s.resetErr }

func (s *stubAuthService) GetUser(ctx context.Context, id string) (*ports.PublicUser, error) {
	return s.getUserFn(ctx, id)
}

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func refreshCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == RefreshCookieName {
			return ck
		}
	}
	t.Fatalf("expected %s cookie to be set", RefreshCookieName)
	return nil
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
			if in.Email != "alice@example.com" || in.UserType != domain.UserTypePlayer {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.RegisterResult{UserID: "u1", Email: in.Email}, nil
		},
	}
	h := NewAuthHandler(stub, false)

	c, rec := newTestContext(http.MethodPost, "/api/auth/register",
		`{"email":"alice@example.com","password":"Secure1A","userType":"player"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["userId"] != "u1" || resp["email"] != "alice@example.com" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if _, ok := resp["passwordHash"]; ok {
		t.Fatal("password hash must not be serialized")
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*ports.RegisterResult, error) {
			t.Fatal("service must not be called for an invalid request")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub, false)

	cases := map[string]string{
		"weak password":   `{"email":"a@example.com","password":"alllowercase1","userType":"player"}`,
		"bad user type":   `{"email":"a@example.com","password":"Secure1A","userType":"coach"}`,
		"bad email":       `{"email":"not-an-email","password":"Secure1A","userType":"player"}`,
		"missing payload": `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodPost, "/api/auth/register", body)
			var ve *ValidationError
			if err := h.Register(c); !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*ports.RegisterResult, error) {
			return nil, domain.ErrEmailDuplicate
		},
	}
	h := NewAuthHandler(stub, false)

	c, _ := newTestContext(http.MethodPost, "/api/auth/register",
		`{"email":"bob@example.com","password":"Secure1A","userType":"recruiter"}`)
	if err := h.Register(c); !errors.Is(err, domain.ErrEmailDuplicate) {
		t.Fatalf("expected ErrEmailDuplicate, got %v", err)
	}
}

func TestAuthHandler_Login_SetsRefreshCookie(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (*ports.LoginResult, error) {
			return &ports.LoginResult{
				AccessToken:  "access.jwt",
				RefreshToken: "refresh.jwt",
				User:         ports.PublicUser{ID: "u1", Email: email, UserType: domain.UserTypePlayer, EmailVerified: true},
			}, nil
		},
	}
	h := NewAuthHandler(stub, true)

	c, rec := newTestContext(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"Secure1A"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	ck := refreshCookieFrom(t, rec)
	if ck.Value != "refresh.jwt" {
		t.Fatalf("unexpected cookie value %q", ck.Value)
	}
	if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteStrictMode || ck.Path != "/" {
		t.Fatalf("unexpected cookie attributes: %+v", ck)
	}
	if ck.MaxAge != 7*24*60*60 {
		t.Fatalf("expected 7 day max-age, got %d", ck.MaxAge)
	}

	if strings.Contains(rec.Body.String(), "refresh.jwt") {
		t.Fatal("refresh token must never appear in the response body")
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.AccessToken != "access.jwt" || !resp.User.EmailVerified {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	for _, want := range []error{domain.ErrInvalidCredentials, domain.ErrEmailNotVerified} {
		stub := &stubAuthService{
			loginFn: func(context.Context, string, string) (*ports.LoginResult, error) { return nil, want },
		}
		h := NewAuthHandler(stub, false)

		c, rec := newTestContext(http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"x"}`)
		if err := h.Login(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatal("no cookie expected on failed login")
		}
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, false)

	c, rec := newTestContext(http.MethodPost, "/api/auth/logout", "")
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if ck := refreshCookieFrom(t, rec); ck.MaxAge >= 0 || ck.Value != "" {
		t.Fatalf("expected a deleting cookie, got %+v", ck)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, token string) (string, error) {
			switch token {
			case "good":
				return "new.access", nil
			case "expired":
				return "", domain.ErrRefreshTokenExpired
			case "orphan":
				return "", fmt.Errorf("refresh: %w", domain.ErrUserNotFound)
			case "db-down":
				return "", errors.New("refresh: find user: server selection timeout")
			}
			return "", domain.ErrInvalidRefreshToken
		},
	}
	h := NewAuthHandler(stub, false)

	t.Run("missing cookie", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/api/auth/refresh", "")
		if err := h.Refresh(c); !errors.Is(err, domain.ErrRefreshTokenMissing) {
			t.Fatalf("expected ErrRefreshTokenMissing, got %v", err)
		}
	})

	t.Run("valid cookie", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/auth/refresh", "")
		c.Request().AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "good"})
		if err := h.Refresh(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp accessTokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.AccessToken != "new.access" {
			t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
		}
	})

	t.Run("rejected cookie is cleared", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/auth/refresh", "")
		c.Request().AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tampered"})
		if err := h.Refresh(c); !errors.Is(err, domain.ErrInvalidRefreshToken) {
			t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
		}
		if ck := refreshCookieFrom(t, rec); ck.MaxAge >= 0 {
			t.Fatalf("expected cookie to be cleared, got %+v", ck)
		}
	})

	for _, token := range []string{"expired", "orphan"} {
		t.Run(token+" cookie is cleared", func(t *testing.T) {
			c, rec := newTestContext(http.MethodPost, "/api/auth/refresh", "")
			c.Request().AddCookie(&http.Cookie{Name: RefreshCookieName, Value: token})
			if err := h.Refresh(c); err == nil {
				t.Fatal("expected an error")
			}
			if ck := refreshCookieFrom(t, rec); ck.MaxAge >= 0 {
				t.Fatalf("expected cookie to be cleared, got %+v", ck)
			}
		})
	}

	t.Run("store failure keeps cookie", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/api/auth/refresh", "")
		c.Request().AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "db-down"})
		if err := h.Refresh(c); err == nil {
			t.Fatal("expected the store error to propagate")
		}
		if got := rec.Header().Values(echo.HeaderSetCookie); len(got) != 0 {
			t.Fatalf("cookie must be left untouched, got Set-Cookie %v", got)
		}
	})
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	stub := &stubAuthService{
		verifyFn: func(_ context.Context, token string) (*domain.User, error) {
			if token != "abc" {
				return nil, domain.ErrInvalidVerificationToken
			}
			return &domain.User{Email: "alice@example.com", EmailVerified: true}, nil
		},
	}
	h := NewAuthHandler(stub, false)

	c, _ := newTestContext(http.MethodGet, "/api/auth/verify-email", "")
	if err := h.VerifyEmail(c); !errors.Is(err, domain.ErrVerificationTokenMissing) {
		t.Fatalf("expected ErrVerificationTokenMissing, got %v", err)
	}

	c, rec := newTestContext(http.MethodGet, "/api/auth/verify-email?token=abc", "")
	if err := h.VerifyEmail(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp messageEmailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Email != "alice@example.com" {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}

	c, _ = newTestContext(http.MethodGet, "/api/auth/verify-email?token=zzz", "")
	if err := h.VerifyEmail(c); !errors.Is(err, domain.ErrInvalidVerificationToken) {
		t.Fatalf("expected ErrInvalidVerificationToken, got %v", err)
	}
}

func TestAuthHandler_ForgotPassword_SameBodyForAnyEmail(t *testing.T) {
	stub := &stubAuthService{}
	h := NewAuthHandler(stub, false)

	bodies := make([]string, 0, 2)
	for _, email := range []string{"alice@example.com", "ghost@example.com"} {
		c, rec := newTestContext(http.MethodPost, "/api/auth/forgot-password", `{"email":"`+email+`"}`)
		if err := h.ForgotPassword(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp messageEmailResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		bodies = append(bodies, resp.Message)
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("expected identical messages, got %q and %q", bodies[0], bodies[1])
	}
	if len(stub.forgotCalls) != 2 {
		t.Fatalf("expected 2 service calls, got %d", len(stub.forgotCalls))
	}
}

func TestAuthHandler_ResendVerification_PropagatesRateLimit(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{resendErr: domain.ErrRateLimitExceeded}, false)

	c, _ := newTestContext(http.MethodPost, "/api/auth/resend-verification", `{"email":"a@example.com"}`)
	if err := h.ResendVerification(c); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	token := strings.Repeat("ab", 32)

	h := NewAuthHandler(&stubAuthService{}, false)
	c, rec := newTestContext(http.MethodPost, "/api/auth/reset-password", `{"token":"`+token+`","newPassword":"NewPassw0rd"}`)
	if err := h.ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = newTestContext(http.MethodPost, "/api/auth/reset-password", `{"token":"short","newPassword":"NewPassw0rd"}`)
	var ve *ValidationError
	if err := h.ResetPassword(c); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for malformed token, got %v", err)
	}

	h = NewAuthHandler(&stubAuthService{resetErr: domain.ErrResetTokenExpired}, false)
	c, _ = newTestContext(http.MethodPost, "/api/auth/reset-password", `{"token":"`+token+`","newPassword":"NewPassw0rd"}`)
	if err := h.ResetPassword(c); !errors.Is(err, domain.ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired, got %v", err)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	stub := &stubAuthService{
		getUserFn: func(_ context.Context, id string) (*ports.PublicUser, error) {
			return &ports.PublicUser{ID: id, Email: "alice@example.com", UserType: domain.UserTypePlayer}, nil
		},
	}
	h := NewAuthHandler(stub, false)

	c, _ := newTestContext(http.MethodGet, "/api/auth/me", "")
	if err := h.Me(c); !errors.Is(err, domain.ErrAccessTokenMissing) {
		t.Fatalf("expected ErrAccessTokenMissing without claims, got %v", err)
	}

	c, rec := newTestContext(http.MethodGet, "/api/auth/me", "")
	c.Set(CtxUserID, "u1")
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.User.ID != "u1" {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}
}
