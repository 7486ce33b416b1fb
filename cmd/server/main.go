// Command server runs the auth service HTTP API.
//
// @title        Auth Service API
// @version      1.0
// @description  User registration, sessions and password reset.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/api"
	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/gate"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/infrastructure/db/memory"
	"github.com/99minutos/auth-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
	"github.com/99minutos/auth-service/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-service/internal/infrastructure/queue"
	"github.com/99minutos/auth-service/internal/infrastructure/security"
	"github.com/99minutos/auth-service/internal/pkg/config"
	"github.com/99minutos/auth-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:        cfg.LogLevel,
		Pretty:       cfg.LogPretty,
		RedactFields: cfg.Security.PIIFields,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	pingers := map[string]handler.PingFunc{}
	var sinks []ports.AuditSink
	sinks = append(sinks, queue.NewLogSink(log.With().Str("component", "audit").Logger()))

	repo, cleanup, err := openStore(ctx, cfg, log, &sinks)
	if err != nil {
		return err
	}
	defer cleanup()
	pingers["store"] = repo.Ping

	tokens, err := security.NewTokenGenerator(cfg.Security.TokenFormat)
	if err != nil {
		return err
	}
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)

	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, log, sinks...)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	svc := service.NewAuthService(repo, hasher, tokens,
		service.WithAudit(dispatcher),
		service.WithLogger(log.With().Str("component", "auth").Logger()),
	)

	var signer *gate.TokenSigner
	if cfg.Auth.JWTSecret != "" {
		if signer, err = gate.NewTokenSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL); err != nil {
			return err
		}
	}
	authn, err := gate.New(cfg.Auth.Type, svc, gate.Options{SessionName: cfg.Auth.SessionName, Signer: signer})
	if err != nil {
		return err
	}

	var limiter ports.LoginLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		limiter = redis.NewLoginLimiter(rdb, cfg.Limiter.MaxFailures, cfg.Limiter.Window)
		pingers["redis"] = redis.Ping(rdb)
	}

	e := api.NewRouter(api.Dependencies{
		AuthService:   svc,
		Authenticator: authn,
		ExcludedPaths: cfg.Auth.ExcludedPaths,
		Cookies:       handler.CookieConfig{Name: cfg.Auth.SessionName, Secure: cfg.IsProduction()},
		Limiter:       limiter,
		Signer:        signer,
		Pingers:       pingers,
		Log:           log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreDriver).
			Str("auth_type", authn.Scheme()).
			Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore connects the configured credential store. Mongo also contributes
// the persistent audit sink.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, sinks *[]ports.AuditSink) (ports.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case "mongo":
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() { _ = client.Disconnect(context.Background()) }
		repo := mongo.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		*sinks = append(*sinks, mongo.NewAuditRepository(db))
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo credential store")
		return repo, cleanup, nil

	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewUserRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("using postgres credential store")
		return repo, pool.Close, nil

	case "memory":
		log.Warn().Msg("using in-memory credential store; data is lost on restart")
		return memory.NewUserRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
