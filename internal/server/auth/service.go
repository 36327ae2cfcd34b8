package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/warehouse/internal/crypto"
	"github.com/iudanet/warehouse/internal/models"
	"github.com/iudanet/warehouse/internal/server/storage"
	"github.com/iudanet/warehouse/pkg/api"
)

// Service связывает учетные записи, коды и токены в сценарий входа
type Service struct {
	users  storage.UserStorage
	codes  *CodeEngine
	tokens *TokenService
	logger *slog.Logger
	now    func() time.Time
}

// NewService создает Service
func NewService(users storage.UserStorage, codes *CodeEngine, tokens *TokenService, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		logger: logger,
		now:    codes.now,
	}
}

// Tokens возвращает TokenService (нужен middleware для проверки Bearer)
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Register создает учетную запись
func (s *Service) Register(ctx context.Context, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate проверяет хеш пароля
func (s *Service) Authenticate(ctx context.Context, email, passwordHash string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !crypto.EqualHashes(user.PasswordHash, passwordHash) {
		return nil, ErrBadCredentials
	}

	return user, nil
}

// RequestCode проверяет пароль и отправляет код подтверждения (первый шаг входа и повторная отправка)
func (s *Service) RequestCode(ctx context.Context, email, passwordHash string) (*IssuedCode, error) {
	if _, err := s.Authenticate(ctx, email, passwordHash); err != nil {
		return nil, err
	}
	return s.codes.Issue(ctx, email)
}

// Verify проверяет код и выпускает пару токенов (второй шаг входа)
func (s *Service) Verify(ctx context.Context, email, code string) (*api.TokenResponse, error) {
	if err := s.codes.Check(ctx, email, code); err != nil {
		return nil, err
	}
	return s.tokens.IssuePair(ctx, email)
}

// Refresh ротирует refresh token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

// Logout отзывает refresh token
func (s *Service) Logout(ctx context.Context, email string) error {
	return s.tokens.Revoke(ctx, email)
}

// Ready проверяет доступность хранилища
func (s *Service) Ready(ctx context.Context) error {
	return s.users.Ping(ctx)
}
