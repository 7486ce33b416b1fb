package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/gate"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// AuthHandler serves the form-based user account endpoints: registration,
// login/logout, profile and password reset.
type AuthHandler struct {
	authService ports.AuthService
	cookies     CookieConfig
	limiter     ports.LoginLimiter
	signer      *gate.TokenSigner
	log         zerolog.Logger
}

// CookieConfig controls the session cookie issued on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandlerOption func(*AuthHandler)

// WithLoginLimiter throttles repeated failed logins. Limiter failures are
// logged and otherwise ignored.
func WithLoginLimiter(l ports.LoginLimiter) AuthHandlerOption {
	return func(h *AuthHandler) { h.limiter = l }
}

// WithTokenSigner adds a bearer token to successful login responses.
func WithTokenSigner(s *gate.TokenSigner) AuthHandlerOption {
	return func(h *AuthHandler) { h.signer = s }
}

func WithHandlerLogger(log zerolog.Logger) AuthHandlerOption {
	return func(h *AuthHandler) { h.log = log }
}

func NewAuthHandler(authService ports.AuthService, cookies CookieConfig, opts ...AuthHandlerOption) *AuthHandler {
	if cookies.Name == "" {
		cookies.Name = gate.DefaultSessionName
	}
	h := &AuthHandler{authService: authService, cookies: cookies, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type credentialsRequest struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type resetTokenRequest struct {
	Email string `form:"email" validate:"required,email"`
}

type updatePasswordRequest struct {
	Email       string `form:"email" validate:"required,email"`
	ResetToken  string `form:"reset_token" validate:"required"`
	NewPassword string `form:"new_password" validate:"required,max=72"`
}

type messageResponse struct {
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type resetTokenResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

type profileResponse struct {
	Email string `json:"email"`
}

// Index
//
// @Summary      Welcome message
// @Tags         users
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       / [get]
func (h *AuthHandler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: "Bienvenue"})
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        email     formData  string  true  "Email"
// @Param        password  formData  string  true  "Password"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  messageResponse
// @Router       /users [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := bindForm(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "email already registered"})
		}
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Email: user.Email, Message: "user created"})
}

// Login validates credentials and opens a session.
//
// @Summary      Log in
// @Tags         sessions
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        email     formData  string  true  "Email"
// @Param        password  formData  string  true  "Password"
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /sessions [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := bindForm(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	throttle := loginThrottle{limiter: h.limiter, log: h.log}
	if throttle.blocked(ctx, req.Email) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many failed login attempts")
	}
	if !h.authService.ValidLogin(ctx, req.Email, req.Password) {
		throttle.failed(ctx, req.Email)
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	throttle.succeeded(ctx, req.Email)

	sessionID, err := h.authService.CreateSession(ctx, req.Email)
	if err != nil {
		return err
	}
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	c.SetCookie(h.sessionCookie(sessionID))

	resp := messageResponse{Email: req.Email, Message: "logged in"}
	if h.signer != nil {
		if resp.Token, err = h.signer.Sign(sessionID); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout destroys the session named by the cookie and redirects home.
//
// @Summary      Log out
// @Tags         sessions
// @Success      302
// @Failure      403  {object}  map[string]string
// @Router       /sessions [delete]
func (h *AuthHandler) Logout(c echo.Context) error {
	user, err := h.sessionUser(c)
	if err != nil {
		return err
	}
	if err := h.authService.DestroySession(c.Request().Context(), user.ID); err != nil {
		return err
	}
	c.SetCookie(h.expiredCookie())
	return c.Redirect(http.StatusFound, "/")
}

// Profile returns the email of the session owner.
//
// @Summary      Current profile
// @Tags         users
// @Produce      json
// @Success      200  {object}  profileResponse
// @Failure      403  {object}  map[string]string
// @Router       /profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	user, err := h.sessionUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{Email: user.Email})
}

// ResetPasswordToken issues a reset token for a registered email.
//
// @Summary      Request a password reset token
// @Tags         password
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        email  formData  string  true  "Email"
// @Success      200  {object}  resetTokenResponse
// @Failure      403  {object}  map[string]string
// @Router       /reset_password [post]
func (h *AuthHandler) ResetPasswordToken(c echo.Context) error {
	var req resetTokenRequest
	if err := bindForm(c, &req); err != nil {
		return err
	}

	token, err := h.authService.GetResetPasswordToken(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
		}
		return err
	}
	return c.JSON(http.StatusOK, resetTokenResponse{Email: req.Email, ResetToken: token})
}

// UpdatePassword redeems a reset token.
//
// @Summary      Update password with a reset token
// @Tags         password
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        email         formData  string  true  "Email"
// @Param        reset_token   formData  string  true  "Reset token"
// @Param        new_password  formData  string  true  "New password"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  map[string]string
// @Router       /reset_password [put]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	var req updatePasswordRequest
	if err := bindForm(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	// The token must belong to the named account.
	owner, err := h.authService.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if owner == nil || !owner.ResetPending() ||
		subtle.ConstantTimeCompare([]byte(*owner.ResetToken), []byte(req.ResetToken)) != 1 {
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}

	if err := h.authService.UpdatePassword(ctx, req.ResetToken, req.NewPassword); err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
		}
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Email: owner.Email, Message: "Password updated"})
}

// sessionUser resolves the session cookie; no cookie or an unknown session
// is a 403.
func (h *AuthHandler) sessionUser(c echo.Context) (*domain.User, error) {
	sid := gate.SessionCookie(c.Request(), h.cookies.Name)
	user, err := h.authService.GetUserFromSessionID(c.Request().Context(), sid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}
	return user, nil
}

func (h *AuthHandler) sessionCookie(sessionID string) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookies.Name,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) expiredCookie() *http.Cookie {
	c := h.sessionCookie("")
	c.MaxAge = -1
	return c
}
