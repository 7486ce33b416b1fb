// Package memory implements the credential store in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// UserRepository is a mutex-guarded credential store. Records are cloned on
// the way in and out so callers never alias stored state.
type UserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]*domain.User
	byEmail map[string]int64
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		nextID:  1,
		users:   make(map[int64]*domain.User),
		byEmail: make(map[string]int64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddUser checks uniqueness and inserts under the same write lock.
func (r *UserRepository) AddUser(_ context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, domain.ErrUserExists
	}

	now := r.now()
	u := &domain.User{
		ID:             r.nextID,
		Email:          email,
		HashedPassword: append([]byte(nil), hashedPassword...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.nextID++
	r.users[u.ID] = u
	r.byEmail[email] = u.ID

	return u.Clone(), nil
}

func (r *UserRepository) FindUserBy(_ context.Context, c domain.Criteria) (*domain.User, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch c.Field {
	case domain.FieldID:
		if u, ok := r.users[c.Value.(int64)]; ok {
			return u.Clone(), nil
		}
	case domain.FieldEmail:
		if id, ok := r.byEmail[c.Value.(string)]; ok {
			return r.users[id].Clone(), nil
		}
	default:
		// session_id and reset_token are not indexed; scan in id order so the
		// lowest id wins if a collision ever occurs.
		for _, id := range r.sortedIDs() {
			if u := r.users[id]; c.Matches(u) {
				return u.Clone(), nil
			}
		}
	}

	return nil, fmt.Errorf("find user by %s: %w", c.Field, domain.ErrNotFound)
}

func (r *UserRepository) UpdateUser(_ context.Context, id int64, fields domain.Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("update user %d: %w", id, domain.ErrNotFound)
	}
	fields.Apply(u, r.now())
	return nil
}

// UpdateUserIf evaluates expect and applies fields under one write lock.
func (r *UserRepository) UpdateUserIf(_ context.Context, id int64, expect domain.Criteria, fields domain.Fields) error {
	if err := expect.Validate(); err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || !expect.Matches(u) {
		return fmt.Errorf("update user %d where %s: %w", id, expect, domain.ErrNotFound)
	}
	fields.Apply(u, r.now())
	return nil
}

func (r *UserRepository) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *UserRepository) sortedIDs() []int64 {
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
