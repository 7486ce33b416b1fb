package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// dbPool is the subset of *pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	email           VARCHAR(250) NOT NULL UNIQUE,
	hashed_password BYTEA NOT NULL,
	session_id      VARCHAR(250),
	reset_token     VARCHAR(250),
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`

const selectUser = `SELECT id, email, hashed_password, session_id, reset_token, created_at, updated_at FROM users`

// columns maps lookup and updatable fields to their column names. Only
// names in this map are ever interpolated into SQL.
var columns = map[domain.Field]string{
	domain.FieldID:             "id",
	domain.FieldEmail:          "email",
	domain.FieldHashedPassword: "hashed_password",
	domain.FieldSessionID:      "session_id",
	domain.FieldResetToken:     "reset_token",
}

// UserRepository implements ports.UserRepository using PostgreSQL.
type UserRepository struct {
	pool dbPool
	now  func() time.Time
}

func NewUserRepository(pool dbPool) *UserRepository {
	return &UserRepository{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema creates the users table when it does not exist yet.
func (r *UserRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

func (r *UserRepository) AddUser(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	now := r.now()
	u := &domain.User{
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`, email, hashedPassword, now).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindUserBy(ctx context.Context, c domain.Criteria) (*domain.User, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	query := selectUser + ` WHERE ` + columns[c.Field] + ` = $1 ORDER BY id LIMIT 1`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, c.Value).Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.SessionID, &u.ResetToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find user by %s: %w", c.Field, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, id int64, fields domain.Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	query, args := buildUpdate(id, fields, r.now())
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateUserIf appends expect to the WHERE clause so the check and the write
// happen in one statement.
func (r *UserRepository) UpdateUserIf(ctx context.Context, id int64, expect domain.Criteria, fields domain.Fields) error {
	if err := expect.Validate(); err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	query, args := buildUpdate(id, fields, r.now())
	args = append(args, expect.Value)
	query += fmt.Sprintf(" AND %s = $%d", columns[expect.Field], len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %d where %s: %w", id, expect, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// buildUpdate renders an UPDATE with columns in a stable order so the
// statement text is deterministic.
func buildUpdate(id int64, fields domain.Fields, now time.Time) (string, []any) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		f := domain.Field(name)
		args = append(args, columnValue(f, fields[f]))
		sets = append(sets, fmt.Sprintf("%s = $%d", columns[f], len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	return fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args
}

func columnValue(f domain.Field, v any) any {
	if f == domain.FieldHashedPassword {
		return v
	}
	s, _ := domain.OptionalString(v)
	if s == nil {
		return nil
	}
	return *s
}
