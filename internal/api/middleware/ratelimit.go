package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/api/metrics"
	"github.com/scoutme/scoutme-api/internal/core/domain"
)

// Limiter counts requests per identity in a fixed window.
type Limiter interface {
	Allow(ctx context.Context, scope, identity string, max int, window time.Duration) (bool, time.Duration, error)
}

// RateLimitConfig sets the per-IP budget for one route group.
type RateLimitConfig struct {
	Scope  string
	Max    int
	Window time.Duration
	// Code is the wire code of the 429; the default rate-limit code when empty.
	Code string
}

// RateLimit rejects a client IP that exceeds cfg.Max requests per cfg.Window.
// Limiter errors are logged and the request is let through. The client IP is
// whatever the Echo instance's IPExtractor yields, so forwarding headers only
// count when the router trusts the proxy that set them.
func RateLimit(limiter Limiter, cfg RateLimitConfig, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			ok, retryAfter, err := limiter.Allow(c.Request().Context(), cfg.Scope, ip, cfg.Max, cfg.Window)
			if err != nil {
				log.Warn().Err(err).Str("scope", cfg.Scope).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !ok {
				metrics.RateLimitedTotal.WithLabelValues("ip", cfg.Scope).Inc()
				return &domain.RetryAfterError{RetryAfter: retryAfter, Code: cfg.Code}
			}
			return next(c)
		}
	}
}
