package gate

import (
	"context"
	"net/http"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// SessionAuth resolves the session id stored in a cookie.
type SessionAuth struct {
	resolver PrincipalResolver
	name     string
}

func NewSessionAuth(resolver PrincipalResolver, cookieName string) *SessionAuth {
	if cookieName == "" {
		cookieName = DefaultSessionName
	}
	return &SessionAuth{resolver: resolver, name: cookieName}
}

func (a *SessionAuth) Scheme() string { return KindSession }

// CookieName is the cookie the session id is read from.
func (a *SessionAuth) CookieName() string { return a.name }

func (a *SessionAuth) CurrentUser(ctx context.Context, r *http.Request) (*domain.User, error) {
	sid := SessionCookie(r, a.name)
	if sid == "" {
		return nil, nil
	}
	return a.resolver.GetUserFromSessionID(ctx, sid)
}
