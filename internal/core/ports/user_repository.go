package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// UserRepository is the credential store. Every call returns only after the
// mutation is committed or the query is resolved.
type UserRepository interface {
	// AddUser inserts a new user. Returns domain.ErrUserExists when the email
	// is already registered.
	AddUser(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error)

	// FindUserBy resolves a single-field equality predicate. Returns
	// domain.ErrNotFound on zero matches and domain.ErrInvalidField when the
	// field is not searchable.
	FindUserBy(ctx context.Context, c domain.Criteria) (*domain.User, error)

	// UpdateUser overwrites only the named fields of user id.
	UpdateUser(ctx context.Context, id int64, fields domain.Fields) error

	// UpdateUserIf is UpdateUser guarded by expect: the write happens only
	// while user id still matches the predicate, checked atomically with the
	// write. Returns domain.ErrNotFound when the record is gone or no longer
	// matches.
	UpdateUserIf(ctx context.Context, id int64, expect domain.Criteria, fields domain.Fields) error

	Ping(ctx context.Context) error
}
