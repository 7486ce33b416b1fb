package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// AuditPublisher accepts auth events for asynchronous delivery.
type AuditPublisher interface {
	Publish(event domain.AuthEvent)
}

// AuditSink persists a single auth event.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuthEvent) error
}
