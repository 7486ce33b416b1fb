package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/auth-service/internal/core/domain"
)

func TestUserRepository_AddUser(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	first, err := repo.AddUser(ctx, "alice@example.com", []byte("hash-a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "alice@example.com", first.Email)
	assert.Nil(t, first.SessionID)
	assert.Nil(t, first.ResetToken)

	second, err := repo.AddUser(ctx, "bob@example.com", []byte("hash-b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	_, err = repo.AddUser(ctx, "alice@example.com", []byte("other"))
	assert.ErrorIs(t, err, domain.ErrUserExists)
	assert.Equal(t, 2, repo.Len())
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u, err := repo.AddUser(ctx, "alice@example.com", []byte("hash"))
	require.NoError(t, err)
	u.HashedPassword[0] = 'X'

	stored, err := repo.FindUserBy(ctx, domain.ByID(u.ID))
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), stored.HashedPassword)
}

func TestUserRepository_FindUserBy(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u, err := repo.AddUser(ctx, "alice@example.com", []byte("hash"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{
		domain.FieldSessionID:  "sess-1",
		domain.FieldResetToken: "reset-1",
	}))

	tests := []struct {
		name     string
		criteria domain.Criteria
		wantErr  error
	}{
		{name: "by id", criteria: domain.ByID(u.ID)},
		{name: "by email", criteria: domain.ByEmail("alice@example.com")},
		{name: "by session id", criteria: domain.BySessionID("sess-1")},
		{name: "by reset token", criteria: domain.ByResetToken("reset-1")},
		{name: "unknown email", criteria: domain.ByEmail("ghost@example.com"), wantErr: domain.ErrNotFound},
		{name: "unknown id", criteria: domain.ByID(99), wantErr: domain.ErrNotFound},
		{name: "stale session", criteria: domain.BySessionID("sess-0"), wantErr: domain.ErrNotFound},
		{name: "non-lookup field", criteria: domain.Criteria{Field: domain.FieldHashedPassword, Value: "hash"}, wantErr: domain.ErrInvalidField},
		{name: "unknown field", criteria: domain.Criteria{Field: "nickname", Value: "al"}, wantErr: domain.ErrInvalidField},
		{name: "mistyped id", criteria: domain.Criteria{Field: domain.FieldID, Value: "1"}, wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindUserBy(ctx, tt.criteria)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
		})
	}
}

func TestUserRepository_UpdateUser(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u, err := repo.AddUser(ctx, "alice@example.com", []byte("hash"))
	require.NoError(t, err)

	t.Run("sets and clears optional fields", func(t *testing.T) {
		require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldSessionID: "sess"}))
		got, err := repo.FindUserBy(ctx, domain.ByID(u.ID))
		require.NoError(t, err)
		require.NotNil(t, got.SessionID)
		assert.Equal(t, "sess", *got.SessionID)

		require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldSessionID: nil}))
		got, err = repo.FindUserBy(ctx, domain.ByID(u.ID))
		require.NoError(t, err)
		assert.Nil(t, got.SessionID)
	})

	t.Run("touches only named fields", func(t *testing.T) {
		require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldResetToken: "tok"}))
		require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldHashedPassword: []byte("new")}))
		got, err := repo.FindUserBy(ctx, domain.ByID(u.ID))
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got.HashedPassword)
		require.NotNil(t, got.ResetToken)
		assert.Equal(t, "tok", *got.ResetToken)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := repo.UpdateUser(ctx, 404, domain.Fields{domain.FieldSessionID: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("immutable and unknown fields", func(t *testing.T) {
		for _, f := range []domain.Field{domain.FieldID, domain.FieldEmail, "nickname"} {
			err := repo.UpdateUser(ctx, u.ID, domain.Fields{f: "x"})
			assert.ErrorIs(t, err, domain.ErrInvalidField, "field %s", f)
		}
	})

	t.Run("mistyped value", func(t *testing.T) {
		err := repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldSessionID: 42})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestUserRepository_UpdateUserIf(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u, err := repo.AddUser(ctx, "alice@example.com", []byte("hash"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldResetToken: "tok"}))

	redeem := domain.Fields{
		domain.FieldHashedPassword: []byte("new"),
		domain.FieldResetToken:     nil,
	}

	err = repo.UpdateUserIf(ctx, u.ID, domain.ByResetToken("other"), redeem)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, _ := repo.FindUserBy(ctx, domain.ByID(u.ID))
	assert.Equal(t, []byte("hash"), got.HashedPassword, "mismatched predicate must not write")

	require.NoError(t, repo.UpdateUserIf(ctx, u.ID, domain.ByResetToken("tok"), redeem))
	got, _ = repo.FindUserBy(ctx, domain.ByID(u.ID))
	assert.Equal(t, []byte("new"), got.HashedPassword)
	assert.Nil(t, got.ResetToken)

	err = repo.UpdateUserIf(ctx, u.ID, domain.ByResetToken("tok"), redeem)
	assert.ErrorIs(t, err, domain.ErrNotFound, "token is gone after the first write")

	err = repo.UpdateUserIf(ctx, 404, domain.ByResetToken("tok"), redeem)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepository_UpdateUserIf_SingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u, err := repo.AddUser(ctx, "alice@example.com", []byte("hash"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateUser(ctx, u.ID, domain.Fields{domain.FieldResetToken: "tok"}))

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.UpdateUserIf(ctx, u.ID, domain.ByResetToken("tok"), domain.Fields{
				domain.FieldHashedPassword: []byte("new"),
				domain.FieldResetToken:     nil,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestUserRepository_ConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	const racers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		exists  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.AddUser(ctx, "race@example.com", []byte(fmt.Sprintf("hash-%d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case assert.ErrorIs(t, err, domain.ErrUserExists):
				exists++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, racers-1, exists)
	assert.Equal(t, 1, repo.Len())
}
