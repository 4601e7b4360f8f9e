package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

const (
	msgRegistered        = "Registration successful. Please check your email to verify your account."
	msgLoggedOut         = "Logged out successfully"
	msgEmailVerified     = "Email verified successfully"
	msgVerificationSent  = "If an account exists for this email, a verification link has been sent."
	msgResetSent         = "If an account exists for this email, a password reset link has been sent."
	msgPasswordResetDone = "Password has been reset successfully"
)

// AuthHandler serves the /api/auth routes. Errors are returned to Echo and
// rendered by the central HTTP error handler.
type AuthHandler struct {
	authService  ports.AuthService
	secureCookie bool
}

// NewAuthHandler builds the handler. secureCookie marks the refresh cookie
// Secure and should be true in production.
func NewAuthHandler(authService ports.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

// bindAndValidate decodes the JSON body into req and runs its validate tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

// Register creates a new, unverified account and queues a verification email.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		UserType: domain.UserType(req.UserType),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, registerResponse{
		Message: msgRegistered,
		UserID:  res.UserID,
		Email:   res.Email,
	})
}

// Login verifies credentials, returns an access token and sets the refresh cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(h.refreshCookie(res.RefreshToken, int(domain.RefreshTokenTTL/time.Second)))
	return c.JSON(http.StatusOK, loginResponse{AccessToken: res.AccessToken, User: res.User})
}

// Logout clears the refresh cookie. Issued tokens stay valid until they expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.refreshCookie("", -1))
	return c.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

// Refresh exchanges the refresh cookie for a new access token. The cookie is
// cleared when the refresh token is rejected.
//
// @Summary      Refresh access token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  accessTokenResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return domain.ErrRefreshTokenMissing
	}

	access, err := h.authService.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		if refreshTokenDead(err) {
			c.SetCookie(h.refreshCookie("", -1))
		}
		return err
	}

	return c.JSON(http.StatusOK, accessTokenResponse{AccessToken: access})
}

// refreshTokenDead reports whether err means the cookie can never succeed.
// Store or other transient failures keep the cookie so the client can retry.
func refreshTokenDead(err error) bool {
	return errors.Is(err, domain.ErrInvalidRefreshToken) ||
		errors.Is(err, domain.ErrRefreshTokenExpired) ||
		errors.Is(err, domain.ErrUserNotFound)
}

// VerifyEmail consumes a verification token.
//
// @Summary      Verify email address
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Verification token"
// @Success      200    {object}  messageEmailResponse
// @Failure      400    {object}  ErrorResponse
// @Router       /api/auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return domain.ErrVerificationTokenMissing
	}

	user, err := h.authService.VerifyEmail(c.Request().Context(), token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageEmailResponse{Message: msgEmailVerified, Email: user.Email})
}

// ResendVerification sends a fresh verification link. The response does not
// reveal whether the address is registered.
//
// @Summary      Resend verification email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageEmailResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse
// @Router       /api/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageEmailResponse{Message: msgVerificationSent, Email: req.Email})
}

// ForgotPassword sends a password reset link. The response is identical for
// registered and unknown addresses.
//
// @Summary      Request password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageEmailResponse
// @Failure      429   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse
// @Router       /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageEmailResponse{Message: msgResetSent, Email: req.Email})
}

// ResetPassword sets a new password using a reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Message: msgPasswordResetDone})
}

// Me returns the authenticated user.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := ctxUserID(c)
	if err != nil {
		return err
	}
	return h.writeUser(c, id)
}

// GetUser returns any user by id. Mounted behind the admin role guard.
//
// @Summary      Get user by id
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/auth/users/{id} [get]
func (h *AuthHandler) GetUser(c echo.Context) error {
	return h.writeUser(c, c.Param("id"))
}

func (h *AuthHandler) writeUser(c echo.Context, id string) error {
	user, err := h.authService.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: *user})
}

// refreshCookie builds the refresh cookie. A negative maxAge deletes it.
func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
