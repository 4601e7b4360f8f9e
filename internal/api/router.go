package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/scoutme/scoutme-api/docs"
	"github.com/scoutme/scoutme-api/internal/api/handler"
	"github.com/scoutme/scoutme-api/internal/api/middleware"
	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

// RateLimits are the per-IP budgets for the auth route groups.
type RateLimits struct {
	AuthMax    int
	RefreshMax int
	Window     time.Duration
}

// Deps are the collaborators the router wires into handlers and middleware.
type Deps struct {
	AuthService ports.AuthService
	Tokens      middleware.AccessVerifier
	Users       ports.UserLookup
	// Limiter enables per-IP rate limiting when non-nil.
	Limiter    middleware.Limiter
	RateLimits RateLimits
	Checkers   []handler.Checker

	// TrustedProxies are CIDRs whose X-Forwarded-For is believed. When empty
	// the client IP is the socket peer.
	TrustedProxies []string

	Env          string
	CORSOrigin   string
	SecureCookie bool
	Log          zerolog.Logger

	// MetricsRegisterer receives the HTTP metrics; defaults to the global registry.
	MetricsRegisterer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.IPExtractor = ipExtractor(d.TrustedProxies, d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         hstsMaxAge(d.SecureCookie),
	}))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{d.CORSOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "scoutme",
		Registerer: d.MetricsRegisterer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.AuthService, d.SecureCookie)
	healthHandler := handler.NewHealthHandler(d.Env, d.Checkers...)

	authLimit := ipLimit(d, "auth", d.RateLimits.AuthMax, "")
	refreshLimit := ipLimit(d, "refresh", d.RateLimits.RefreshMax, codeRefreshRateLimited)

	// --- Auth routes ---
	auth := e.Group("/api/auth")
	auth.POST("/register", authHandler.Register, authLimit...)
	auth.POST("/login", authHandler.Login, authLimit...)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/refresh", authHandler.Refresh, refreshLimit...)
	auth.GET("/verify-email", authHandler.VerifyEmail)
	auth.POST("/resend-verification", authHandler.ResendVerification, authLimit...)
	auth.POST("/forgot-password", authHandler.ForgotPassword, authLimit...)
	auth.POST("/reset-password", authHandler.ResetPassword, authLimit...)

	// --- Authenticated routes ---
	requireAuth := middleware.Auth(d.Tokens)
	requireActive := middleware.RequireActiveUser(d.Users)
	auth.GET("/me", authHandler.Me, requireAuth, requireActive)
	auth.GET("/users/:id", authHandler.GetUser, requireAuth, requireActive, middleware.RequireUserType(domain.UserTypeAdmin))

	// --- Health checks (no auth required) ---
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())  // prometheus scrape endpoint
	e.GET("/swagger/*", echoSwagger.WrapHandler)    // API docs

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"name":    "scoutme-api",
			"version": "1.0",
			"docs":    "/swagger/index.html",
		})
	})

	return e
}

// ipLimit returns the middleware chain for a rate-limited route, empty when
// limiting is disabled.
func ipLimit(d Deps, scope string, max int, code string) []echo.MiddlewareFunc {
	if d.Limiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.RateLimit(d.Limiter, middleware.RateLimitConfig{
		Scope:  scope,
		Max:    max,
		Window: d.RateLimits.Window,
		Code:   code,
	}, d.Log)}
}

// ipExtractor reads the socket peer unless trusted proxies are configured,
// in which case the right-most untrusted X-Forwarded-For hop is used.
func ipExtractor(trusted []string, log zerolog.Logger) echo.IPExtractor {
	var opts []echo.TrustOption
	for _, cidr := range trusted {
		ipNet, err := parseTrustedProxy(cidr)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cidr).Msg("ignoring trusted proxy")
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	if len(opts) == 0 {
		return echo.ExtractIPDirect()
	}
	opts = append(opts, echo.TrustLoopback(false), echo.TrustLinkLocal(false), echo.TrustPrivateNet(false))
	return echo.ExtractIPFromXFFHeader(opts...)
}

// parseTrustedProxy accepts a CIDR or a bare IP address.
func parseTrustedProxy(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, &net.ParseError{Type: "IP address", Text: s}
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
	}
	_, ipNet, err := net.ParseCIDR(s)
	return ipNet, err
}

func hstsMaxAge(secure bool) int {
	if secure {
		return 31536000
	}
	return 0
}
