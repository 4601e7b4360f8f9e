// Package metrics defines and registers all custom Prometheus metrics for the
// scoutme API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// (promauto) and exposed on /metrics by the echoprometheus handler.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

const namespace = "scoutme"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthOperationsTotal counts auth use cases by outcome.
// Labels:
//   - operation: "register", "login", "refresh", "verify_email", ...
//   - result: "ok" or a short error reason (e.g. "invalid_credentials")
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of auth operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// RateLimitedTotal counts rejected requests.
// Labels:
//   - limiter: "account" (per-user counters) or "ip" (per-IP window)
//   - scope: the flow or route group that was limited
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by a rate limiter.",
	},
	[]string{"limiter", "scope"},
)

// ── Mail metrics ──────────────────────────────────────────────────────────────

// MailDeliveriesTotal counts background email deliveries.
// Labels:
//   - kind: "verification" or "password_reset"
//   - result: "sent" or "failed"
var MailDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_deliveries_total",
		Help:      "Total number of queued email deliveries, by kind and result.",
	},
	[]string{"kind", "result"},
)

// ObserveMailDelivery is the queue.Dispatcher delivery hook.
func ObserveMailDelivery(kind ports.MailKind, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	MailDeliveriesTotal.WithLabelValues(string(kind), result).Inc()
}

// ── Service instrumentation ──────────────────────────────────────────────────

// authService decorates a ports.AuthService with operation counters.
type authService struct {
	next ports.AuthService
}

// InstrumentAuthService wraps next so every call is counted in AuthOperationsTotal.
func InstrumentAuthService(next ports.AuthService) ports.AuthService {
	return &authService{next: next}
}

func (s *authService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	res, err := s.next.Register(ctx, in)
	observe("register", err)
	return res, err
}

func (s *authService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	res, err := s.next.Login(ctx, email, password)
	observe("login", err)
	return res, err
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	token, err := s.next.Refresh(ctx, refreshToken)
	observe("refresh", err)
	return token, err
}

func (s *authService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	u, err := s.next.VerifyEmail(ctx, token)
	observe("verify_email", err)
	return u, err
}

func (s *authService) ResendVerification(ctx context.Context, email string) error {
	err := s.next.ResendVerification(ctx, email)
	observe("resend_verification", err)
	return err
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	err := s.next.ForgotPassword(ctx, email)
	observe("forgot_password", err)
	return err
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := s.next.ResetPassword(ctx, token, newPassword)
	observe("reset_password", err)
	return err
}

func (s *authService) GetUser(ctx context.Context, id string) (*ports.PublicUser, error) {
	u, err := s.next.GetUser(ctx, id)
	observe("get_user", err)
	return u, err
}

func observe(operation string, err error) {
	result := Reason(err)
	AuthOperationsTotal.WithLabelValues(operation, result).Inc()
	if errors.Is(err, domain.ErrRateLimitExceeded) {
		RateLimitedTotal.WithLabelValues("account", operation).Inc()
	}
}

// reasons keeps label cardinality bounded: unknown errors collapse to "error".
var reasons = []struct {
	err    error
	reason string
}{
	{domain.ErrEmailDuplicate, "email_duplicate"},
	{domain.ErrInvalidCredentials, "invalid_credentials"},
	{domain.ErrEmailNotVerified, "email_not_verified"},
	{domain.ErrRefreshTokenExpired, "refresh_token_expired"},
	{domain.ErrInvalidRefreshToken, "invalid_refresh_token"},
	{domain.ErrUserNotFound, "user_not_found"},
	{domain.ErrInvalidVerificationToken, "invalid_verification_token"},
	{domain.ErrVerificationTokenExpired, "verification_token_expired"},
	{domain.ErrEmailAlreadyVerified, "email_already_verified"},
	{domain.ErrInvalidResetToken, "invalid_reset_token"},
	{domain.ErrResetTokenExpired, "reset_token_expired"},
	{domain.ErrRateLimitExceeded, "rate_limit_exceeded"},
	{domain.ErrEmailSendFailed, "email_send_failed"},
	{domain.ErrConcurrentUpdate, "concurrent_update"},
}

// Reason maps err to a metric label value.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "error"
}
