package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/auth-service/internal/core/domain"
)

const auditCollection = "auth_events"

// AuditRepository persists auth events to the auth_events audit collection.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// Record implements ports.AuditSink.
func (r *AuditRepository) Record(ctx context.Context, event domain.AuthEvent) error {
	doc := bson.M{
		"kind":         string(event.Kind),
		"user_id":      event.UserID,
		"email":        event.Email,
		"at":           event.At.UTC(),
		"processed_at": time.Now().UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
