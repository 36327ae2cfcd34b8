// Package server assembles the HTTP surface of the authentication service.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/warehouse/internal/server/auth"
	"github.com/iudanet/warehouse/internal/server/handlers"
	"github.com/iudanet/warehouse/internal/server/middleware"
	"github.com/iudanet/warehouse/internal/server/ratelimit"
	"github.com/iudanet/warehouse/pkg/api"
)

// Deps зависимости HTTP слоя
type Deps struct {
	Logger  *slog.Logger
	Service *auth.Service
	Limiter *ratelimit.Limiter
	Version string
	// TrustProxy включает разбор X-Forwarded-For/X-Real-IP (только за доверенным прокси)
	TrustProxy bool
}

// NewRouter создает chi router со всеми маршрутами
func NewRouter(d Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.Logger, d.Service, d.Limiter)
	healthHandler := handlers.NewHealthHandler(d.Logger, d.Service, d.Version)

	limit := func(class ratelimit.Class) func(http.Handler) http.Handler {
		return middleware.RateLimitMiddleware(d.Logger, d.Limiter, class)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.LoggingWithSkip(d.Logger, api.PathHealth))
	r.Use(middleware.RecoveryMiddleware(d.Logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, api.ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed"})
	})

	r.Get(api.PathHealth, healthHandler.Health)

	// Публичные маршруты с лимитами по IP
	r.With(limit(ratelimit.ClassRegister)).Post(api.PathRegister, authHandler.Register)
	r.With(limit(ratelimit.ClassLogin)).Post(api.PathLogin, authHandler.Login)
	r.With(limit(ratelimit.ClassResend)).Post(api.PathResendCode, authHandler.ResendCode)
	r.With(limit(ratelimit.ClassVerify)).Post(api.PathVerify, authHandler.Verify)
	r.Post(api.PathRefreshToken, authHandler.RefreshToken)

	// Защищенные маршруты
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(d.Logger, d.Service.Tokens()))
		r.Post(api.PathLogout, authHandler.Logout)
		r.Get(api.PathTestAuth, authHandler.TestAuth)
	})

	return r
}
