package gate

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/auth-service/internal/core/domain"
)

type stubResolver struct {
	users    map[string]string // email -> password
	sessions map[string]string // session id -> email
	err      error
	calls    int
}

func (s *stubResolver) Authenticate(_ context.Context, email, password string) (*domain.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if pw, ok := s.users[email]; ok && pw == password {
		return &domain.User{ID: 1, Email: email}, nil
	}
	return nil, nil
}

func (s *stubResolver) GetUserFromSessionID(_ context.Context, sid string) (*domain.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if email, ok := s.sessions[sid]; ok {
		return &domain.User{ID: 1, Email: email}, nil
	}
	return nil, nil
}

func newResolver() *stubResolver {
	return &stubResolver{
		users:    map[string]string{"bob@hbtn.io": "H0lbertonSchool98!", "user": "pa:ss"},
		sessions: map[string]string{"sid-1": "bob@hbtn.io"},
	}
}

func basicHeader(creds string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func TestRequireAuth(t *testing.T) {
	excluded := []string{"/api/v1/status/", "/api/v1/unauthorized"}

	cases := []struct {
		name     string
		path     string
		excluded []string
		want     bool
	}{
		{"empty excluded list", "/api/status", nil, true},
		{"empty path", "", []string{"/status"}, true},
		{"trailing slash on path", "/status/", []string{"/status"}, false},
		{"trailing slash on entry", "/api/v1/status", excluded, false},
		{"both slashes", "/api/v1/status/", excluded, false},
		{"not listed", "/api/v1/users", excluded, true},
		{"no prefix matching", "/api/v1/status/extra", excluded, true},
		{"case sensitive", "/API/v1/status", excluded, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RequireAuth(tc.path, tc.excluded))
		})
	}
}

func TestExtractBase64AuthorizationHeader(t *testing.T) {
	got, ok := ExtractBase64AuthorizationHeader("Basic dXNlcjpwYXNz")
	require.True(t, ok)
	assert.Equal(t, "dXNlcjpwYXNz", got)

	for _, h := range []string{"", "dXNlcjpwYXNz", "basic dXNlcjpwYXNz", "Bearer abc", "Basic"} {
		_, ok := ExtractBase64AuthorizationHeader(h)
		assert.False(t, ok, "header %q", h)
	}
}

func TestDecodeBase64AuthorizationHeader(t *testing.T) {
	got, ok := DecodeBase64AuthorizationHeader("dXNlcjpwYXNz")
	require.True(t, ok)
	assert.Equal(t, "user:pass", got)

	_, ok = DecodeBase64AuthorizationHeader("not base64!")
	assert.False(t, ok)

	_, ok = DecodeBase64AuthorizationHeader(base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}))
	assert.False(t, ok, "invalid utf-8 must not decode")
}

func TestExtractUserCredentials(t *testing.T) {
	email, pw, ok := ExtractUserCredentials("user:pass")
	require.True(t, ok)
	assert.Equal(t, "user", email)
	assert.Equal(t, "pass", pw)

	email, pw, ok = ExtractUserCredentials("user:pa:ss")
	require.True(t, ok)
	assert.Equal(t, "user", email)
	assert.Equal(t, "pa:ss", pw)

	_, _, ok = ExtractUserCredentials("nocolon")
	assert.False(t, ok)
}

func TestBasicAuth_CurrentUser(t *testing.T) {
	res := newResolver()
	a := NewBasicAuth(res)
	assert.Equal(t, KindBasic, a.Scheme())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", basicHeader("bob@hbtn.io:H0lbertonSchool98!"))
	u, err := a.CurrentUser(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob@hbtn.io", u.Email)

	req.Header.Set("Authorization", basicHeader("user:pa:ss"))
	u, err = a.CurrentUser(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, u, "password containing a colon")

	for _, h := range []string{"", "Basic %%%", basicHeader("nocolon"), basicHeader("bob@hbtn.io:wrong")} {
		req.Header.Set("Authorization", h)
		u, err := a.CurrentUser(context.Background(), req)
		assert.NoError(t, err, "header %q", h)
		assert.Nil(t, u, "header %q", h)
	}

	assert.Nil(t, mustUser(a.CurrentUser(context.Background(), nil)))
}

func TestBasicAuth_PropagatesResolverError(t *testing.T) {
	res := newResolver()
	res.err = errors.New("db down")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", basicHeader("bob@hbtn.io:x"))

	_, err := NewBasicAuth(res).CurrentUser(context.Background(), req)
	assert.Error(t, err)
}

func TestSessionAuth_CurrentUser(t *testing.T) {
	res := newResolver()
	a := NewSessionAuth(res, "")
	assert.Equal(t, DefaultSessionName, a.CookieName())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	u, err := a.CurrentUser(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Zero(t, res.calls, "no cookie must not reach the resolver")

	req.AddCookie(&http.Cookie{Name: DefaultSessionName, Value: "sid-1"})
	u, err = a.CurrentUser(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob@hbtn.io", u.Email)

	custom := NewSessionAuth(res, "_my_session_id")
	u, err = custom.CurrentUser(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, u, "cookie name is configurable")
}

func TestTokenSigner(t *testing.T) {
	_, err := NewTokenSigner("", time.Hour)
	require.Error(t, err)

	s, err := NewTokenSigner("secret", time.Hour)
	require.NoError(t, err)

	tok, err := s.Sign("sid-1")
	require.NoError(t, err)
	sid, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", sid)

	other, _ := NewTokenSigner("other", time.Hour)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Parse(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "expired")
}

func TestTokenSigner_RejectsOtherAlgorithms(t *testing.T) {
	s, _ := NewTokenSigner("secret", time.Hour)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sid": "sid-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = s.Parse(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestBearerAuth_CurrentUser(t *testing.T) {
	res := newResolver()
	s, _ := NewTokenSigner("secret", time.Hour)
	a := NewBearerAuth(res, s)
	assert.Equal(t, KindJWT, a.Scheme())

	tok, _ := s.Sign("sid-1")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	u, err := a.CurrentUser(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob@hbtn.io", u.Email)

	revoked, _ := s.Sign("sid-gone")
	for _, h := range []string{"", "Bearer", "Token " + tok, "Bearer garbage", "Bearer " + revoked} {
		req.Header.Set("Authorization", h)
		u, err := a.CurrentUser(context.Background(), req)
		assert.NoError(t, err, "header %q", h)
		assert.Nil(t, u, "header %q", h)
	}
}

func TestNew(t *testing.T) {
	res := newResolver()
	s, _ := NewTokenSigner("secret", time.Hour)

	for kind, scheme := range map[string]string{
		KindBasic:   KindBasic,
		KindSession: KindSession,
		"":          KindSession,
		KindJWT:     KindJWT,
	} {
		a, err := New(kind, res, Options{Signer: s})
		require.NoError(t, err, kind)
		assert.Equal(t, scheme, a.Scheme())
	}

	_, err := New(KindJWT, res, Options{})
	assert.Error(t, err)
	_, err = New("digest_auth", res, Options{})
	assert.Error(t, err)
}

func TestHeaderHelpers(t *testing.T) {
	assert.Empty(t, AuthorizationHeader(nil))
	assert.Empty(t, SessionCookie(nil, "x"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Test")
	req.AddCookie(&http.Cookie{Name: "x", Value: "v"})
	assert.Equal(t, "Test", AuthorizationHeader(req))
	assert.Equal(t, "v", SessionCookie(req, "x"))
	assert.Empty(t, SessionCookie(req, "y"))
}

func mustUser(u *domain.User, _ error) *domain.User { return u }
