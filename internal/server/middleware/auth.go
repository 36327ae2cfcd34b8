package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/warehouse/internal/server/auth"
	"github.com/iudanet/warehouse/pkg/api"
)

type contextKey string

// emailKey ключ контекста с email владельца access token
const emailKey contextKey = "email"

// TokenVerifier проверяет access token и возвращает email владельца
type TokenVerifier interface {
	VerifyAccessToken(token string) (string, error)
}

// WithEmail кладет email аутентифицированного пользователя в контекст
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

// EmailFromContext возвращает email, положенный AuthMiddleware
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

// AuthMiddleware создает middleware для проверки Bearer access token
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(ctx, "missing Authorization header", slog.String("path", r.URL.Path))
				unauthorized(w, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, ok := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, api.TokenTypeBearer) || token == "" {
				logger.WarnContext(ctx, "invalid Authorization header format", slog.String("path", r.URL.Path))
				unauthorized(w, "invalid token format")
				return
			}

			email, err := verifier.VerifyAccessToken(token)
			if err != nil {
				logger.WarnContext(ctx, "access token rejected", slog.Any("error", err))
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized(w, "token expired")
					return
				}
				unauthorized(w, "invalid token")
				return
			}

			logger.DebugContext(ctx, "user authenticated", slog.String("email", email))

			next.ServeHTTP(w, r.WithContext(WithEmail(ctx, email)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, api.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}
