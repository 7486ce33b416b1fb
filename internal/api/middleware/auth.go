package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/gate"
)

// AuthConfig configures the access gate middleware.
type AuthConfig struct {
	Authenticator gate.Authenticator
	// ExcludedPaths are served without authentication.
	ExcludedPaths []string
	// SessionName is the cookie that counts as a credential when present.
	SessionName string
}

// Auth resolves the current user and injects it into the context. Requests
// with neither an Authorization header nor a session cookie get 401; those
// whose credentials resolve to no user get 403.
func Auth(cfg AuthConfig) echo.MiddlewareFunc {
	if cfg.SessionName == "" {
		cfg.SessionName = gate.DefaultSessionName
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !gate.RequireAuth(req.URL.Path, cfg.ExcludedPaths) {
				return next(c)
			}

			if gate.AuthorizationHeader(req) == "" && gate.SessionCookie(req, cfg.SessionName) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			user, err := cfg.Authenticator.CurrentUser(req.Context(), req)
			if err != nil {
				return err
			}
			if user == nil {
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}

			handler.SetCurrentUser(c, user)
			return next(c)
		}
	}
}
