package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

// AuthService implements registration, login, sessions and password reset on
// top of a credential store.
type AuthService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenGenerator
	audit  ports.AuditPublisher
	log    zerolog.Logger
	now    func() time.Time
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithAudit publishes every state transition to p.
func WithAudit(p ports.AuditPublisher) Option {
	return func(s *AuthService) { s.audit = p }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *AuthService) { s.log = log }
}

func NewAuthService(repo ports.UserRepository, hasher ports.PasswordHasher, tokens ports.TokenGenerator, opts ...Option) *AuthService {
	s := &AuthService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		log:    zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.AuthService = (*AuthService)(nil)

func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" {
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w: email is required", domain.ErrInvalidInput)
	}

	_, err := s.repo.FindUserBy(ctx, domain.ByEmail(email))
	switch {
	case err == nil:
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultExists).Inc()
		return nil, fmt.Errorf("User %s already exists: %w", email, domain.ErrUserExists)
	case !errors.Is(err, domain.ErrNotFound):
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	user, err := s.repo.AddUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.RegistrationsTotal.WithLabelValues(metrics.ResultExists).Inc()
			return nil, fmt.Errorf("User %s already exists: %w", email, domain.ErrUserExists)
		}
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.RegistrationsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("user registered")
	s.publish(domain.EventRegistered, user)
	return user, nil
}

// ValidLogin reports whether password matches the stored hash for email.
// Any failure, including a store error, reads as an invalid login.
func (s *AuthService) ValidLogin(ctx context.Context, email, password string) bool {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		s.log.Error().Err(err).Msg("login validation failed")
		return false
	}
	return user != nil
}

// Authenticate returns the user whose credentials match, or nil when the
// email is unknown or the password is wrong.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, nil
	}

	user, err := s.repo.FindUserBy(ctx, domain.ByEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.LoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if !s.hasher.Verify(user.HashedPassword, password) {
		metrics.LoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, nil
	}

	metrics.LoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return user, nil
}

// GetUserByEmail returns the user registered under email, or nil.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, nil
	}
	user, err := s.repo.FindUserBy(ctx, domain.ByEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (s *AuthService) VerifyPassword(user *domain.User, password string) bool {
	if user == nil || password == "" {
		return false
	}
	return s.hasher.Verify(user.HashedPassword, password)
}

// CreateSession stores a fresh session id for email and returns it. An unknown
// email yields an empty id and no mutation.
func (s *AuthService) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := s.repo.FindUserBy(ctx, domain.ByEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("create session: %w", err)
	}

	sessionID, err := s.tokens.NewToken()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if err := s.repo.UpdateUser(ctx, user.ID, domain.Fields{domain.FieldSessionID: sessionID}); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsTotal.WithLabelValues("created").Inc()
	s.log.Debug().Int64("user_id", user.ID).Msg("session created")
	s.publish(domain.EventSessionCreated, user)
	return sessionID, nil
}

// GetUserFromSessionID returns the owner of sessionID, or nil when the id is
// empty or unknown.
func (s *AuthService) GetUserFromSessionID(ctx context.Context, sessionID string) (*domain.User, error) {
	if sessionID == "" {
		return nil, nil
	}
	user, err := s.repo.FindUserBy(ctx, domain.BySessionID(sessionID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user from session: %w", err)
	}
	return user, nil
}

// DestroySession clears the session of userID. Unknown ids and users without
// a session are ignored.
func (s *AuthService) DestroySession(ctx context.Context, userID int64) error {
	user, err := s.repo.FindUserBy(ctx, domain.ByID(userID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("destroy session: %w", err)
	}
	if !user.HasSession() {
		return nil
	}

	err = s.repo.UpdateUserIf(ctx, userID, domain.BySessionID(*user.SessionID), domain.Fields{domain.FieldSessionID: nil})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("destroy session: %w", err)
	}

	metrics.SessionsTotal.WithLabelValues("destroyed").Inc()
	s.log.Debug().Int64("user_id", userID).Msg("session destroyed")
	s.publish(domain.EventSessionDestroyed, user)
	return nil
}

// GetResetPasswordToken stores and returns a fresh reset token for email.
func (s *AuthService) GetResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := s.repo.FindUserBy(ctx, domain.ByEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("reset token: %w", err)
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	if err := s.repo.UpdateUser(ctx, user.ID, domain.Fields{domain.FieldResetToken: token}); err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("password reset requested")
	s.publish(domain.EventResetRequested, user)
	return token, nil
}

// UpdatePassword redeems a reset token. The new hash and the cleared token are
// written in a single update that only lands while the token is still stored,
// so concurrent redemptions of one token have exactly one winner.
func (s *AuthService) UpdatePassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrInvalidToken
	}

	user, err := s.repo.FindUserBy(ctx, domain.ByResetToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("update password: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	err = s.repo.UpdateUserIf(ctx, user.ID, domain.ByResetToken(token), domain.Fields{
		domain.FieldHashedPassword: hash,
		domain.FieldResetToken:     nil,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("update password: %w", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("completed").Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("password updated")
	s.publish(domain.EventPasswordUpdated, user)
	return nil
}

func (s *AuthService) publish(kind domain.AuthEventKind, user *domain.User) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(domain.AuthEvent{
		Kind:   kind,
		UserID: user.ID,
		Email:  user.Email,
		At:     s.now(),
	})
}
