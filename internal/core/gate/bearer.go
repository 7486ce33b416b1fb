package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// sessionClaims carries the session id so a bearer token is revoked together
// with the session it was minted for.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies HS256 bearer tokens wrapping a session id.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) (*TokenSigner, error) {
	if secret == "" {
		return nil, errors.New("gate: token signer needs a secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenSigner) Sign(sessionID string) (string, error) {
	now := s.now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse returns the session id of a valid token.
func (s *TokenSigner) Parse(token string) (string, error) {
	claims := &sessionClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tkn.Valid {
		return "", domain.ErrInvalidToken
	}
	if claims.SessionID == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.SessionID, nil
}

// BearerAuth resolves `Authorization: Bearer <jwt>`.
type BearerAuth struct {
	resolver PrincipalResolver
	signer   *TokenSigner
}

func NewBearerAuth(resolver PrincipalResolver, signer *TokenSigner) *BearerAuth {
	return &BearerAuth{resolver: resolver, signer: signer}
}

func (a *BearerAuth) Scheme() string { return KindJWT }

func (a *BearerAuth) CurrentUser(ctx context.Context, r *http.Request) (*domain.User, error) {
	scheme, token, ok := strings.Cut(AuthorizationHeader(r), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, nil
	}
	sid, err := a.signer.Parse(token)
	if err != nil {
		return nil, nil
	}
	return a.resolver.GetUserFromSessionID(ctx, sid)
}
