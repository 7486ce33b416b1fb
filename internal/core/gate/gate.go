// Package gate resolves the principal of an inbound request. Each strategy
// reads one kind of credential (Basic header, session cookie, bearer token)
// and maps it to a user through the auth service.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// Strategy names accepted by New.
const (
	KindBasic   = "basic_auth"
	KindSession = "session_auth"
	KindJWT     = "jwt_auth"
)

// DefaultSessionName is the cookie carrying the session id when none is configured.
const DefaultSessionName = "session_id"

// Authenticator extracts and resolves the current user of a request.
// A nil user with a nil error means the request carries no valid principal;
// errors are reserved for infrastructure failures.
type Authenticator interface {
	Scheme() string
	CurrentUser(ctx context.Context, r *http.Request) (*domain.User, error)
}

// PrincipalResolver is the slice of the auth service the strategies depend on.
type PrincipalResolver interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetUserFromSessionID(ctx context.Context, sessionID string) (*domain.User, error)
}

// Options configure the strategy built by New.
type Options struct {
	SessionName string
	Signer      *TokenSigner
}

// New builds the strategy named by kind.
func New(kind string, resolver PrincipalResolver, opts Options) (Authenticator, error) {
	switch kind {
	case KindBasic:
		return NewBasicAuth(resolver), nil
	case KindSession, "":
		return NewSessionAuth(resolver, opts.SessionName), nil
	case KindJWT:
		if opts.Signer == nil {
			return nil, fmt.Errorf("gate: %s requires a token signer", kind)
		}
		return NewBearerAuth(resolver, opts.Signer), nil
	default:
		return nil, fmt.Errorf("gate: unknown auth type %q", kind)
	}
}

// RequireAuth reports whether path needs authentication. Only an exact match
// against excluded (ignoring one trailing slash on either side) exempts it.
func RequireAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	path = strings.TrimSuffix(path, "/")
	for _, ex := range excluded {
		if strings.TrimSuffix(ex, "/") == path {
			return false
		}
	}
	return true
}

// AuthorizationHeader returns the raw Authorization header, or "" for a nil request.
func AuthorizationHeader(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Authorization")
}

// SessionCookie returns the value of the cookie called name, or "".
func SessionCookie(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
