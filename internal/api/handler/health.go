package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const readinessTimeout = 3 * time.Second

// Checker is a dependency checked by the readiness endpoint.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	env      string
	checkers []Checker
	now      func() time.Time
}

func NewHealthHandler(env string, checkers ...Checker) *HealthHandler {
	return &HealthHandler{env: env, checkers: checkers, now: time.Now}
}

type livenessResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Liveness handles GET /health. Returns 200 immediately; confirms the process is alive.
//
// @Summary      Liveness check
// @Tags         health
// @Produce      json
// @Success      200  {object}  livenessResponse
// @Router       /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, livenessResponse{
		Status:      "ok",
		Timestamp:   h.now().UTC().Format(time.RFC3339),
		Environment: h.env,
	})
}

// Readiness handles GET /health/ready. Pings every dependency before declaring
// the service ready.
//
// @Summary      Readiness check
// @Tags         health
// @Produce      json
// @Success      200  {object}  readinessResponse
// @Failure      503  {object}  readinessResponse
// @Router       /health/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.checkers))
	healthy := true

	for _, chk := range h.checkers {
		if err := chk.Ping(ctx); err != nil {
			deps[chk.Name()] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[chk.Name()] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
