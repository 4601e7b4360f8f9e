package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/scoutme/scoutme-api/internal/api/handler"
	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

// RequireUserType allows the request only when the token's user type is one
// of allowed. Must run after Auth.
func RequireUserType(allowed ...domain.UserType) echo.MiddlewareFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		set[string(t)] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userType, _ := c.Get(handler.CtxUserType).(string)
			if _, ok := set[userType]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

// RequireActiveUser re-reads the token's user from the store and rejects the
// request when the account is gone or its email is not verified. The stored
// user type replaces the one from the token. Must run after Auth.
func RequireActiveUser(lookup ports.UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := c.Get(handler.CtxUserID).(string)
			if id == "" {
				return domain.ErrAccessTokenMissing
			}

			user, err := lookup.FindByID(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return domain.ErrInvalidAccessToken
				}
				return err
			}
			if !user.EmailVerified {
				return domain.ErrEmailNotVerified
			}

			c.Set(handler.CtxUserType, string(user.UserType))
			return next(c)
		}
	}
}
