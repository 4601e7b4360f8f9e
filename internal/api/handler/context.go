package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

// Context keys set by middleware.Auth.
const (
	CtxUserID   = "user_id"
	CtxEmail    = "email"
	CtxUserType = "user_type"
)

// ctxUserID extracts the authenticated user id injected by the Auth middleware.
// An empty id means the route was mounted without Auth.
func ctxUserID(c echo.Context) (string, error) {
	id, _ := c.Get(CtxUserID).(string)
	if id == "" {
		return "", domain.ErrAccessTokenMissing
	}
	return id, nil
}
