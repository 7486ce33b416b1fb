package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/auth-service/docs"
	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/api/middleware"
	"github.com/99minutos/auth-service/internal/core/gate"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	AuthService   ports.AuthService
	Authenticator gate.Authenticator
	ExcludedPaths []string
	Cookies       handler.CookieConfig

	// Optional.
	Limiter ports.LoginLimiter
	Signer  *gate.TokenSigner
	Pingers map[string]handler.PingFunc
	// Registerer receives the HTTP metrics; nil means the default registry.
	Registerer prometheus.Registerer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: deps.Registerer,
	}))

	// --- User account routes ---
	opts := []handler.AuthHandlerOption{handler.WithHandlerLogger(deps.Log)}
	if deps.Limiter != nil {
		opts = append(opts, handler.WithLoginLimiter(deps.Limiter))
	}
	if deps.Signer != nil {
		opts = append(opts, handler.WithTokenSigner(deps.Signer))
	}
	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Cookies, opts...)

	e.GET("/", authHandler.Index)
	e.POST("/users", authHandler.Register)
	e.POST("/sessions", authHandler.Login)
	e.DELETE("/sessions", authHandler.Logout)
	e.GET("/profile", authHandler.Profile)
	e.POST("/reset_password", authHandler.ResetPasswordToken)
	e.PUT("/reset_password", authHandler.UpdatePassword)

	// --- API v1, behind the access gate ---
	sessionOpts := []handler.SessionHandlerOption{handler.WithSessionLogger(deps.Log)}
	if deps.Limiter != nil {
		sessionOpts = append(sessionOpts, handler.WithSessionLimiter(deps.Limiter))
	}
	sessionHandler := handler.NewSessionHandler(deps.AuthService, deps.Cookies, sessionOpts...)
	v1 := e.Group("/api/v1", middleware.Auth(middleware.AuthConfig{
		Authenticator: deps.Authenticator,
		ExcludedPaths: deps.ExcludedPaths,
		SessionName:   deps.Cookies.Name,
	}))
	v1.GET("/status", sessionHandler.Status)
	v1.GET("/unauthorized", sessionHandler.Unauthorized)
	v1.GET("/forbidden", sessionHandler.Forbidden)
	v1.GET("/users/me", sessionHandler.Me)
	v1.POST("/auth_session/login", sessionHandler.Login)
	v1.DELETE("/auth_session/logout", sessionHandler.Logout)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Pingers)

	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
