package ports

import (
	"context"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// AuthService drives the credential and session lifecycle of a user.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	ValidLogin(ctx context.Context, email, password string) bool
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateSession(ctx context.Context, email string) (string, error)
	// VerifyPassword checks password against an already loaded user.
	VerifyPassword(user *domain.User, password string) bool
	GetUserFromSessionID(ctx context.Context, sessionID string) (*domain.User, error)
	DestroySession(ctx context.Context, userID int64) error
	GetResetPasswordToken(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, token, newPassword string) error
}
