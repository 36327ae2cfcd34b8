// Package ratelimit implements fixed-window request counters keyed by
// (endpoint class, client). Counters live in a Store, which must provide an
// atomic increment-with-expiry so that instances sharing the store agree on
// the count.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Class классы эндпоинтов с отдельными лимитами
type Class string

const (
	ClassRegister    Class = "register"
	ClassLogin       Class = "login"
	ClassResend      Class = "resend"
	ClassVerify      Class = "verify"
	ClassVerifyEmail Class = "verify-email" // попытки ввода кода на один email, независимо от IP
)

// Store хранилище счетчиков
type Store interface {
	// Increment атомарно увеличивает счетчик key.
	// Первый вызов создает счетчик со значением 1 и временем жизни window.
	// Возвращает новое значение и оставшееся время жизни окна.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Rule лимит для класса: не более Limit запросов за Window
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision результат проверки лимита
type Decision struct {
	RetryAfter time.Duration // сколько ждать до сброса окна (для отклоненных запросов)
	Count      int64
	Limit      int
	Allowed    bool
}

// Limiter проверяет запросы по правилам классов
type Limiter struct {
	store  Store
	rules  map[Class]Rule
	logger *slog.Logger
}

// New создает Limiter
func New(store Store, rules map[Class]Rule, logger *slog.Logger) *Limiter {
	copied := make(map[Class]Rule, len(rules))
	for class, rule := range rules {
		copied[class] = rule
	}

	return &Limiter{
		store:  store,
		rules:  copied,
		logger: logger,
	}
}

// Rule возвращает правило класса
func (l *Limiter) Rule(class Class) (Rule, bool) {
	rule, ok := l.rules[class]
	return rule, ok
}

// Admit учитывает запрос subject в классе class и решает, пропускать ли его.
// Первые Limit запросов окна пропускаются, остальные отклоняются до истечения окна.
// Класс без правила не ограничивается. При недоступности хранилища запрос
// пропускается (fail open), ошибка логируется.
func (l *Limiter) Admit(ctx context.Context, class Class, subject string) Decision {
	rule, ok := l.rules[class]
	if !ok || rule.Limit <= 0 {
		return Decision{Allowed: true}
	}

	count, ttl, err := l.store.Increment(ctx, Key(class, subject), rule.Window)
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit store unavailable, admitting request",
			slog.String("class", string(class)),
			slog.Any("error", err))
		return Decision{Allowed: true, Limit: rule.Limit}
	}

	decision := Decision{
		Allowed: count <= int64(rule.Limit),
		Count:   count,
		Limit:   rule.Limit,
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
	}

	return decision
}

// Key формирует ключ счетчика
func Key(class Class, subject string) string {
	return string(class) + ":" + subject
}
