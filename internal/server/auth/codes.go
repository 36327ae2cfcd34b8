package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/iudanet/warehouse/internal/server/mailer"
	"github.com/iudanet/warehouse/internal/server/storage"
	"github.com/iudanet/warehouse/internal/validation"
)

const (
	// DefaultCodeTTL время жизни кода подтверждения
	DefaultCodeTTL = 300 * time.Second
	// DefaultCodeCooldown минимальный интервал между запросами кода
	DefaultCodeCooldown = 60 * time.Second
)

// codeSpace количество различных кодов (000000..999999)
var codeSpace = big.NewInt(1_000_000)

// IssuedCode сведения о выданном коде для обратного отсчета на клиенте
type IssuedCode struct {
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
}

// CodeEngine выдает, проверяет и гасит одноразовые коды входа
type CodeEngine struct {
	users    storage.UserStorage
	sender   mailer.Sender
	logger   *slog.Logger
	now      func() time.Time
	ttl      time.Duration
	cooldown time.Duration
}

// CodeOption настраивает CodeEngine
type CodeOption func(*CodeEngine)

// WithCodeTTL задает время жизни кода
func WithCodeTTL(ttl time.Duration) CodeOption {
	return func(e *CodeEngine) { e.ttl = ttl }
}

// WithCodeCooldown задает интервал между запросами кода
func WithCodeCooldown(cooldown time.Duration) CodeOption {
	return func(e *CodeEngine) { e.cooldown = cooldown }
}

// WithCodeClock подменяет часы (для тестов)
func WithCodeClock(now func() time.Time) CodeOption {
	return func(e *CodeEngine) { e.now = now }
}

// NewCodeEngine создает CodeEngine
func NewCodeEngine(users storage.UserStorage, sender mailer.Sender, logger *slog.Logger, opts ...CodeOption) *CodeEngine {
	e := &CodeEngine{
		users:    users,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
		ttl:      DefaultCodeTTL,
		cooldown: DefaultCodeCooldown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL время жизни кода
func (e *CodeEngine) TTL() time.Duration {
	return e.ttl
}

// Issue выдает новый код и отправляет его на email.
// Если письмо не ушло, код и отметка cooldown откатываются, чтобы пользователь мог сразу повторить запрос.
func (e *CodeEngine) Issue(ctx context.Context, email string) (*IssuedCode, error) {
	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	now := e.now()
	if user.LastCodeRequestAt != nil {
		if elapsed := now.Sub(*user.LastCodeRequestAt); elapsed < e.cooldown {
			return nil, &CooldownError{Wait: e.cooldown - elapsed}
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	if err := e.users.SetVerificationCode(ctx, email, code, now); err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	expiresAt := now.Add(e.ttl)
	if err := e.sender.SendCode(ctx, email, code, expiresAt); err != nil {
		e.logger.ErrorContext(ctx, "failed to send verification code",
			slog.String("email", email),
			slog.Any("error", err))

		// Откат выполняем даже если запрос клиента уже отменен
		rbCtx := context.WithoutCancel(ctx)
		if rbErr := e.users.RollbackVerificationCode(rbCtx, email, code, user.LastCodeRequestAt); rbErr != nil {
			e.logger.ErrorContext(ctx, "failed to rollback verification code",
				slog.String("email", email),
				slog.Any("error", rbErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	return &IssuedCode{
		ExpiresAt:         expiresAt,
		ResendAvailableAt: now.Add(e.cooldown),
	}, nil
}

// Check проверяет код. nil означает, что код верный и уже погашен.
func (e *CodeEngine) Check(ctx context.Context, email, code string) error {
	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasVerificationCode() {
		return ErrCodeNotFound
	}

	// Истекший код отклоняется даже если он верный
	if e.now().Sub(*user.CodeCreatedAt) > e.ttl {
		if err := e.users.ClearVerificationCode(ctx, email); err != nil && !errors.Is(err, storage.ErrUserNotFound) {
			e.logger.ErrorContext(ctx, "failed to clear expired verification code",
				slog.String("email", email),
				slog.Any("error", err))
		}
		return ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(user.VerificationCode), []byte(code)) != 1 {
		return ErrCodeMismatch
	}

	if err := e.users.ConsumeVerificationCode(ctx, email, code); err != nil {
		if errors.Is(err, storage.ErrCodeNotFound) {
			// Параллельный запрос успел погасить код
			return ErrCodeNotFound
		}
		return fmt.Errorf("failed to consume verification code: %w", err)
	}

	return nil
}

// GenerateCode возвращает случайный код из CodeLength цифр, ведущие нули допустимы
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", validation.CodeLength, n.Int64()), nil
}
