// Package auth реализует клиентскую часть входа и управление сохраненными сессиями.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/warehouse/internal/client/storage"
	"github.com/iudanet/warehouse/internal/crypto"
	"github.com/iudanet/warehouse/internal/validation"
	pkgapi "github.com/iudanet/warehouse/pkg/api"
)

// Challenge незавершенный вход: пароль принят, код отправлен на email
type Challenge struct {
	CodeExpiresAt     time.Time
	ResendAvailableAt time.Time
	Email             string
	passwordHash      string
}

// Remaining сколько еще действует код
func (c *Challenge) Remaining(now time.Time) time.Duration {
	return max(c.CodeExpiresAt.Sub(now), 0)
}

// Expired истек ли срок действия кода
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.CodeExpiresAt)
}

// ResendIn сколько ждать до повторной отправки кода
func (c *Challenge) ResendIn(now time.Time) time.Duration {
	return max(c.ResendAvailableAt.Sub(now), 0)
}

// CanResend можно ли уже запросить новый код
func (c *Challenge) CanResend(now time.Time) bool {
	return !now.Before(c.ResendAvailableAt)
}

// Service предоставляет функции авторизации
type Service struct {
	apiClient APIClient
	store     storage.SessionStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient APIClient, store storage.SessionStorage, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		apiClient: apiClient,
		store:     store,
		now:       o.now,
	}
}

// Register регистрирует нового пользователя
// Пароль не покидает клиент, на сервер уходит только его хеш
func (s *Service) Register(ctx context.Context, email, password string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	passwordHash, err := crypto.HashPassword(email, password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	req := pkgapi.RegisterRequest{
		Email:        email,
		PasswordHash: passwordHash,
	}
	if _, err := s.apiClient.Register(ctx, req); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return nil
}

// Login выполняет первый шаг входа: проверку пароля и отправку кода
func (s *Service) Login(ctx context.Context, email, password string) (*Challenge, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password cannot be empty", validation.ErrValidation)
	}

	passwordHash, err := crypto.HashPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Email: email, PasswordHash: passwordHash})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	return &Challenge{
		Email:             email,
		CodeExpiresAt:     resp.CodeExpiresAt,
		ResendAvailableAt: resp.ResendAvailableAt,
		passwordHash:      passwordHash,
	}, nil
}

// ResendCode запрашивает новый код для начатого входа
// Сервер повторно проверяет пароль, поэтому используется хеш из Challenge
func (s *Service) ResendCode(ctx context.Context, challenge *Challenge) error {
	if challenge == nil || challenge.passwordHash == "" {
		return fmt.Errorf("%w: login has not been started", validation.ErrValidation)
	}

	resp, err := s.apiClient.ResendCode(ctx, pkgapi.LoginRequest{
		Email:        challenge.Email,
		PasswordHash: challenge.passwordHash,
	})
	if err != nil {
		return fmt.Errorf("resend code failed: %w", err)
	}

	challenge.CodeExpiresAt = resp.CodeExpiresAt
	challenge.ResendAvailableAt = resp.ResendAvailableAt
	return nil
}

// Verify завершает вход кодом из письма и сохраняет сессию
func (s *Service) Verify(ctx context.Context, email, code string) (*storage.Session, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidateCode(code); err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Verify(ctx, pkgapi.VerifyRequest{Email: email, Code: code})
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	sess := newSession(email, resp, s.now())
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

func newSession(email string, tokens *pkgapi.TokenResponse, now time.Time) *storage.Session {
	return &storage.Session{
		Email:        email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		UpdatedAt:    now,
	}
}
