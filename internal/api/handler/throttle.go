package handler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/ports"
)

// loginThrottle guards a login endpoint with an optional LoginLimiter.
// Limiter failures are logged and never block a login.
type loginThrottle struct {
	limiter ports.LoginLimiter
	log     zerolog.Logger
}

func (t loginThrottle) blocked(ctx context.Context, email string) bool {
	if t.limiter == nil {
		return false
	}
	blocked, err := t.limiter.Blocked(ctx, email)
	if err != nil {
		t.log.Warn().Err(err).Msg("login limiter unavailable")
		return false
	}
	return blocked
}

func (t loginThrottle) failed(ctx context.Context, email string) {
	if t.limiter == nil {
		return
	}
	if err := t.limiter.RecordFailure(ctx, email); err != nil {
		t.log.Warn().Err(err).Msg("login limiter unavailable")
	}
}

func (t loginThrottle) succeeded(ctx context.Context, email string) {
	if t.limiter == nil {
		return
	}
	if err := t.limiter.Reset(ctx, email); err != nil {
		t.log.Warn().Err(err).Msg("login limiter unavailable")
	}
}
