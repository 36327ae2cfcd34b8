package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/iudanet/warehouse/internal/server/ratelimit"
	"github.com/iudanet/warehouse/pkg/api"
)

// Admitter решает, пропустить ли запрос (реализуется ratelimit.Limiter)
type Admitter interface {
	Admit(ctx context.Context, class ratelimit.Class, subject string) ratelimit.Decision
}

// RateLimitMiddleware ограничивает частоту запросов класса class с одного IP.
// Отклоненный запрос получает 429 с Retry-After.
func RateLimitMiddleware(logger *slog.Logger, limiter Admitter, class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r)

			decision := limiter.Admit(ctx, class, ip)
			if !decision.Allowed {
				logger.WarnContext(ctx, "rate limit exceeded",
					slog.String("class", string(class)),
					slog.String("ip", ip),
					slog.Int64("count", decision.Count),
					slog.Int("limit", decision.Limit),
					slog.String("path", r.URL.Path))

				TooManyRequests(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TooManyRequests отправляет 429 для отклоненного решения лимитера
func TooManyRequests(w http.ResponseWriter, decision ratelimit.Decision) {
	WriteError(w, http.StatusTooManyRequests, api.ErrorResponse{
		Error:             "rate limit exceeded",
		Message:           "too many requests, please try again later",
		RetryAfterSeconds: RetryAfterSeconds(decision.RetryAfter),
	})
}

// ClientIP возвращает IP клиента из RemoteAddr без порта.
// Заголовки прокси учитываются только если перед цепочкой стоит chi middleware.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
