package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/gate"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// SessionHandler serves the /api/v1 endpoints mounted behind the access gate.
type SessionHandler struct {
	authService ports.AuthService
	cookies     CookieConfig
	throttle    loginThrottle
}

type SessionHandlerOption func(*SessionHandler)

// WithSessionLimiter throttles repeated failed logins on the session login
// endpoint, sharing counters with the form login.
func WithSessionLimiter(l ports.LoginLimiter) SessionHandlerOption {
	return func(h *SessionHandler) { h.throttle.limiter = l }
}

func WithSessionLogger(log zerolog.Logger) SessionHandlerOption {
	return func(h *SessionHandler) { h.throttle.log = log }
}

func NewSessionHandler(authService ports.AuthService, cookies CookieConfig, opts ...SessionHandlerOption) *SessionHandler {
	if cookies.Name == "" {
		cookies.Name = gate.DefaultSessionName
	}
	h := &SessionHandler{
		authService: authService,
		cookies:     cookies,
		throttle:    loginThrottle{log: zerolog.Nop()},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type statusResponse struct {
	Status string `json:"status"`
}

// Status
//
// @Summary      API status
// @Tags         api
// @Produce      json
// @Success      200  {object}  statusResponse
// @Router       /api/v1/status [get]
func (h *SessionHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "OK"})
}

// Unauthorized always aborts with 401.
//
// @Summary      Always 401
// @Tags         api
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/unauthorized [get]
func (h *SessionHandler) Unauthorized(c echo.Context) error {
	return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
}

// Forbidden always aborts with 403.
//
// @Summary      Always 403
// @Tags         api
// @Failure      403  {object}  map[string]string
// @Router       /api/v1/forbidden [get]
func (h *SessionHandler) Forbidden(c echo.Context) error {
	return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
}

// Me returns the authenticated user.
//
// @Summary      Current user
// @Tags         api
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/v1/users/me [get]
func (h *SessionHandler) Me(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Login checks credentials and sets the session cookie.
//
// @Summary      Session login
// @Tags         api
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        email     formData  string  true  "Email"
// @Param        password  formData  string  true  "Password"
// @Success      200  {object}  domain.User
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /api/v1/auth_session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := bindForm(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	if h.throttle.blocked(ctx, req.Email) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many failed login attempts")
	}
	user, err := h.authService.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		h.throttle.failed(ctx, req.Email)
		return echo.NewHTTPError(http.StatusNotFound, "no user found for this email")
	}
	if !h.authService.VerifyPassword(user, req.Password) {
		h.throttle.failed(ctx, req.Email)
		return echo.NewHTTPError(http.StatusUnauthorized, "wrong password")
	}
	h.throttle.succeeded(ctx, req.Email)

	sessionID, err := h.authService.CreateSession(ctx, user.Email)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     h.cookies.Name,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, user)
}

// Logout destroys the session carried by the cookie.
//
// @Summary      Session logout
// @Tags         api
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/auth_session/logout [delete]
func (h *SessionHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.authService.GetUserFromSessionID(ctx, gate.SessionCookie(c.Request(), h.cookies.Name))
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	if err := h.authService.DestroySession(ctx, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{})
}
