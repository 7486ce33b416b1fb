package gate

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const basicPrefix = "Basic "

// BasicAuth resolves `Authorization: Basic base64(email:password)`.
type BasicAuth struct {
	resolver PrincipalResolver
}

func NewBasicAuth(resolver PrincipalResolver) *BasicAuth {
	return &BasicAuth{resolver: resolver}
}

func (a *BasicAuth) Scheme() string { return KindBasic }

func (a *BasicAuth) CurrentUser(ctx context.Context, r *http.Request) (*domain.User, error) {
	payload, ok := ExtractBase64AuthorizationHeader(AuthorizationHeader(r))
	if !ok {
		return nil, nil
	}
	decoded, ok := DecodeBase64AuthorizationHeader(payload)
	if !ok {
		return nil, nil
	}
	email, password, ok := ExtractUserCredentials(decoded)
	if !ok {
		return nil, nil
	}
	return a.resolver.Authenticate(ctx, email, password)
}

// ExtractBase64AuthorizationHeader returns the payload after the literal
// "Basic " prefix. The prefix match is case-sensitive.
func ExtractBase64AuthorizationHeader(header string) (string, bool) {
	if !strings.HasPrefix(header, basicPrefix) {
		return "", false
	}
	return header[len(basicPrefix):], true
}

// DecodeBase64AuthorizationHeader decodes standard base64 into UTF-8 text.
func DecodeBase64AuthorizationHeader(payload string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// ExtractUserCredentials splits on the first colon; the password may itself
// contain colons.
func ExtractUserCredentials(decoded string) (email, password string, ok bool) {
	return strings.Cut(decoded, ":")
}
