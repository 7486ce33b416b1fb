package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/gate"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/infrastructure/db/memory"
	"github.com/99minutos/auth-service/internal/infrastructure/security"
)

type stubLimiter struct {
	blocked  bool
	failures int
	resets   int
}

func (l *stubLimiter) Blocked(context.Context, string) (bool, error) { return l.blocked, nil }
func (l *stubLimiter) RecordFailure(context.Context, string) error  { l.failures++; return nil }
func (l *stubLimiter) Reset(context.Context, string) error          { l.resets++; return nil }

type testServer struct {
	e       *echo.Echo
	svc     *service.AuthService
	limiter *stubLimiter
}

func newTestServer(t *testing.T, opts ...AuthHandlerOption) *testServer {
	t.Helper()
	svc := service.NewAuthService(
		memory.NewUserRepository(),
		security.NewBcryptHasher(bcrypt.MinCost),
		security.UUIDGenerator{},
	)
	limiter := &stubLimiter{}
	opts = append([]AuthHandlerOption{WithLoginLimiter(limiter)}, opts...)
	h := NewAuthHandler(svc, CookieConfig{Name: "session_id"}, opts...)

	e := echo.New()
	e.Validator = NewValidator()
	e.GET("/", h.Index)
	e.POST("/users", h.Register)
	e.POST("/sessions", h.Login)
	e.DELETE("/sessions", h.Logout)
	e.GET("/profile", h.Profile)
	e.POST("/reset_password", h.ResetPasswordToken)
	e.PUT("/reset_password", h.UpdatePassword)
	return &testServer{e: e, svc: svc, limiter: limiter}
}

func (s *testServer) do(method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return out
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func creds(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func TestAuthHandler_Index(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Bienvenue" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthHandler_Register(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/users", creds("bob@me.com", "mySuperPwd"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["email"] != "bob@me.com" || body["message"] != "user created" {
		t.Fatalf("unexpected payload: %+v", body)
	}

	rec = s.do(http.MethodPost, "/users", creds("bob@me.com", "mySuperPwd"))
	if rec.Code != http.StatusBadRequest || decode(t, rec)["message"] != "email already registered" {
		t.Fatalf("expected 400 email already registered, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/users", url.Values{"email": {"x@y.z"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestAuthHandler_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/users", creds("bob@me.com", "pwd"))

	rec := s.do(http.MethodPost, "/sessions", creds("bob@me.com", "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if s.limiter.failures != 1 {
		t.Fatalf("failure not recorded")
	}

	rec = s.do(http.MethodPost, "/sessions", creds("bob@me.com", "pwd"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["message"] != "logged in" || body["email"] != "bob@me.com" {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if _, ok := decode(t, rec)["token"]; ok {
		t.Fatalf("no token expected without a signer")
	}
	if s.limiter.resets != 1 {
		t.Fatalf("limiter not reset on success")
	}
	cookie := sessionCookieFrom(t, rec)
	if !cookie.HttpOnly || cookie.Value == "" {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}

	rec = s.do(http.MethodGet, "/profile", nil, cookie)
	if rec.Code != http.StatusOK || decode(t, rec)["email"] != "bob@me.com" {
		t.Fatalf("profile failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodDelete, "/sessions", nil, cookie)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = s.do(http.MethodGet, "/profile", nil, cookie)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after logout, got %d", rec.Code)
	}
	rec = s.do(http.MethodDelete, "/sessions", nil, cookie)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a second logout, got %d", rec.Code)
	}
}

func TestAuthHandler_ProfileWithoutCookie(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodGet, "/profile", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAuthHandler_LoginThrottled(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/users", creds("bob@me.com", "pwd"))
	s.limiter.blocked = true

	if rec := s.do(http.MethodPost, "/sessions", creds("bob@me.com", "pwd")); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestAuthHandler_LoginIssuesBearerToken(t *testing.T) {
	signer, err := gate.NewTokenSigner("secret", time.Hour)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	s := newTestServer(t, WithTokenSigner(signer))
	s.do(http.MethodPost, "/users", creds("bob@me.com", "pwd"))

	rec := s.do(http.MethodPost, "/sessions", creds("bob@me.com", "pwd"))
	token, _ := decode(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response")
	}
	sid, err := signer.Parse(token)
	if err != nil || sid != sessionCookieFrom(t, rec).Value {
		t.Fatalf("token does not wrap the session id: %q, %v", sid, err)
	}
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/users", creds("bob@me.com", "old"))

	rec := s.do(http.MethodPost, "/reset_password", url.Values{"email": {"ghost@me.com"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown email, got %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/reset_password", url.Values{"email": {"bob@me.com"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	token, _ := body["reset_token"].(string)
	if body["email"] != "bob@me.com" || token == "" {
		t.Fatalf("unexpected payload: %+v", body)
	}

	s.do(http.MethodPost, "/users", creds("eve@me.com", "evil"))
	for _, email := range []string{"eve@me.com", "ghost@me.com"} {
		rec = s.do(http.MethodPut, "/reset_password", url.Values{
			"email": {email}, "reset_token": {token}, "new_password": {"hijacked"},
		})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for token presented with %s, got %d", email, rec.Code)
		}
	}

	update := url.Values{"email": {"bob@me.com"}, "reset_token": {token}, "new_password": {"new"}}
	rec = s.do(http.MethodPut, "/reset_password", update)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Password updated" {
		t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodPut, "/reset_password", update)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on token reuse, got %d", rec.Code)
	}

	if rec := s.do(http.MethodPost, "/sessions", creds("bob@me.com", "new")); rec.Code != http.StatusOK {
		t.Fatalf("login with new password failed: %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/sessions", creds("bob@me.com", "hijacked")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("mismatched email must not have changed the password: %d", rec.Code)
	}
}

func TestAuthHandler_RejectsMalformedEmail(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/users", "/sessions"} {
		rec := s.do(http.MethodPost, path, creds("not-an-email", "pw"))
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "email must be a valid email") {
			t.Fatalf("%s: expected 400 for malformed email, got %d %s", path, rec.Code, rec.Body.String())
		}
	}
	rec := s.do(http.MethodPost, "/reset_password", url.Values{"email": {"not-an-email"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed reset email, got %d", rec.Code)
	}
}

// failingAuthService surfaces store errors to check they are not masked.
type failingAuthService struct {
	*service.AuthService
}

var errStore = errors.New("store down")

func (failingAuthService) Register(context.Context, string, string) (*domain.User, error) {
	return nil, errStore
}

func TestAuthHandler_Register_UnexpectedError(t *testing.T) {
	h := NewAuthHandler(failingAuthService{}, CookieConfig{})
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(creds("a@b.c", "pw").Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.Register(c); !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}
