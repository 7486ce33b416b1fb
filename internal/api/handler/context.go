package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// currentUserKey is where the gate middleware stores the resolved principal.
const currentUserKey = "current_user"

func SetCurrentUser(c echo.Context, u *domain.User) {
	c.Set(currentUserKey, u)
}

// CurrentUser returns the principal injected by the gate middleware.
func CurrentUser(c echo.Context) *domain.User {
	u, _ := c.Get(currentUserKey).(*domain.User)
	return u
}

// ctxUser is the fast-fail variant for handlers mounted behind the gate: a
// missing principal means the middleware did not run.
func ctxUser(c echo.Context) (*domain.User, error) {
	u := CurrentUser(c)
	if u == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return u, nil
}
