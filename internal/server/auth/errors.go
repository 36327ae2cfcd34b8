// Package auth implements the server side of the two-factor login:
// verification codes, access/refresh tokens and the login flow built on them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/warehouse/internal/validation"
)

var (
	// ErrBadCredentials неверный email или хеш пароля (не раскрываем, что именно)
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrAlreadyExists email уже зарегистрирован
	ErrAlreadyExists = errors.New("user already exists")
	// ErrCooldown новый код запрошен раньше, чем закончился cooldown
	ErrCooldown = errors.New("verification code requested too recently")
	// ErrDelivery письмо с кодом не удалось отправить
	ErrDelivery = errors.New("failed to deliver verification code")
	// ErrCodeExpired код старше допустимого времени жизни
	ErrCodeExpired = errors.New("verification code expired")
	// ErrCodeMismatch код не совпадает с выданным
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrCodeNotFound код не выдавался или уже использован
	ErrCodeNotFound = errors.New("no verification code issued")
	// ErrTokenExpired срок действия токена истек
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid токен поврежден, подписан чужим ключом или уже ротирован
	ErrTokenInvalid = errors.New("token invalid")
)

// CooldownError сообщает, сколько осталось ждать до следующего запроса кода
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrCooldown, e.Wait.Round(time.Second))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldown
}

// Kind категория ошибки, по которой gateway выбирает HTTP статус
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindRateLimited
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// KindOf относит ошибку к одной из категорий.
// Все неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, validation.ErrValidation),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrCodeExpired):
		return KindValidation
	case errors.Is(err, ErrBadCredentials),
		errors.Is(err, ErrCodeMismatch),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid):
		return KindAuth
	case errors.Is(err, ErrCodeNotFound):
		return KindNotFound
	case errors.Is(err, ErrCooldown):
		return KindRateLimited
	case errors.Is(err, ErrDelivery):
		return KindDelivery
	default:
		return KindInternal
	}
}

// RetryAfter возвращает подсказку ожидания для ErrCooldown
func RetryAfter(err error) (time.Duration, bool) {
	var cerr *CooldownError
	if errors.As(err, &cerr) {
		return cerr.Wait, true
	}
	return 0, false
}
