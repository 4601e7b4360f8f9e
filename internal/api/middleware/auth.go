package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/scoutme/scoutme-api/internal/api/handler"
	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

// AccessVerifier is the part of ports.TokenCodec the Auth middleware needs.
type AccessVerifier interface {
	VerifyAccess(token string) (*ports.AccessClaims, error)
}

// Auth validates the Bearer access token and injects its claims into context.
func Auth(verifier AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return domain.ErrAccessTokenMissing
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return domain.ErrAccessTokenMissing
			}

			claims, err := verifier.VerifyAccess(parts[1])
			if err != nil {
				return err
			}

			c.Set(handler.CtxUserID, claims.UserID)
			c.Set(handler.CtxEmail, claims.Email)
			c.Set(handler.CtxUserType, string(claims.UserType))

			return next(c)
		}
	}
}
