package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// LogSink writes auth events to the structured log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(_ context.Context, event domain.AuthEvent) error {
	s.log.Info().
		Str("kind", string(event.Kind)).
		Int64("user_id", event.UserID).
		Str("email", event.Email).
		Time("at", event.At).
		Msg("auth event")
	return nil
}
