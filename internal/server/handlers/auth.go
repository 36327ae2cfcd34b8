package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/warehouse/internal/server/auth"
	"github.com/iudanet/warehouse/internal/server/middleware"
	"github.com/iudanet/warehouse/internal/server/ratelimit"
	"github.com/iudanet/warehouse/internal/validation"
	"github.com/iudanet/warehouse/pkg/api"
)

// maxBodyBytes ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service *auth.Service
	limiter middleware.Admitter
}

// NewAuthHandler создает новый handler для авторизации.
// limiter ограничивает попытки ввода кода на один email (класс verify-email).
func NewAuthHandler(logger *slog.Logger, service *auth.Service, limiter middleware.Admitter) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
		limiter: limiter,
	}
}

// Register обрабатывает POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Email = validation.NormalizeEmail(req.Email)
	if !h.validate(w, r, &req) {
		return
	}

	user, err := h.service.Register(ctx, req.Email, req.PasswordHash)
	if err != nil {
		h.sendAuthError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("email", user.Email),
		slog.String("user_id", user.ID))

	h.sendJSON(w, api.MessageResponse{Message: "user registered successfully"}, http.StatusOK)
}

// Login обрабатывает POST /login
// Проверяет пароль и отправляет код подтверждения на email
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.requestCode(w, r, "verification code sent")
}

// ResendCode обрабатывает POST /resend-code
// Повторная отправка кода, пароль проверяется заново, cooldown общий с /login
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	h.requestCode(w, r, "verification code sent again")
}

func (h *AuthHandler) requestCode(w http.ResponseWriter, r *http.Request, message string) {
	ctx := r.Context()

	var req api.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Email = validation.NormalizeEmail(req.Email)
	if !h.validate(w, r, &req) {
		return
	}

	issued, err := h.service.RequestCode(ctx, req.Email, req.PasswordHash)
	if err != nil {
		h.sendAuthError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "verification code issued", slog.String("email", req.Email))

	h.sendJSON(w, api.LoginResponse{
		Message:           message,
		CodeExpiresAt:     issued.ExpiresAt.UTC(),
		ResendAvailableAt: issued.ResendAvailableAt.UTC(),
	}, http.StatusOK)
}

// Verify обрабатывает POST /verify
// Второй шаг входа: проверка кода и выдача пары токенов
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Email = validation.NormalizeEmail(req.Email)
	if !h.validate(w, r, &req) {
		return
	}

	// Подбор кода со многих IP упирается в лимит на email
	if decision := h.limiter.Admit(ctx, ratelimit.ClassVerifyEmail, req.Email); !decision.Allowed {
		h.logger.WarnContext(ctx, "too many verification attempts", slog.String("email", req.Email))
		middleware.TooManyRequests(w, decision)
		return
	}

	tokens, err := h.service.Verify(ctx, req.Email, req.Code)
	if err != nil {
		h.sendAuthError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user logged in successfully", slog.String("email", req.Email))

	h.sendJSON(w, tokens, http.StatusOK)
}

// RefreshToken обрабатывает POST /refresh-token
// Ротация refresh token: предъявленный токен становится недействительным
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validate(w, r, &req) {
		return
	}

	tokens, err := h.service.Refresh(ctx, req.CurrentRefreshToken)
	if err != nil {
		h.sendAuthError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "tokens refreshed successfully")

	h.sendJSON(w, tokens, http.StatusOK)
}

// Logout обрабатывает POST /logout
// Удаляет refresh token. Access token действует до истечения срока.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email, ok := middleware.EmailFromContext(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Logout(ctx, email); err != nil {
		h.sendAuthError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "user logged out successfully", slog.String("email", email))

	h.sendJSON(w, api.MessageResponse{Message: "logged out"}, http.StatusOK)
}

// TestAuth обрабатывает GET /test-auth
// Возвращает владельца access token
func (h *AuthHandler) TestAuth(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, api.TestAuthResponse{
		Message: "authenticated",
		User:    email,
	}, http.StatusOK)
}

// decode читает JSON тело запроса
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// validate проверяет запрос по validate тегам, до обращения к хранилищу
func (h *AuthHandler) validate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := validation.Struct(req); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// sendAuthError переводит ошибку в HTTP ответ, внутренние детали не раскрываются
func (h *AuthHandler) sendAuthError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	kind := auth.KindOf(err)

	switch kind {
	case auth.KindValidation:
		h.logger.WarnContext(ctx, "request rejected", slog.String("kind", kind.String()), slog.Any("error", err))
		h.sendError(w, publicMessage(err), http.StatusBadRequest)
	case auth.KindAuth:
		h.logger.WarnContext(ctx, "authentication failed", slog.Any("error", err))
		h.sendError(w, publicMessage(err), http.StatusUnauthorized)
	case auth.KindNotFound:
		h.logger.WarnContext(ctx, "verification code not found", slog.Any("error", err))
		h.sendError(w, publicMessage(err), http.StatusNotFound)
	case auth.KindRateLimited:
		wait, _ := auth.RetryAfter(err)
		h.logger.WarnContext(ctx, "verification code cooldown", slog.Duration("wait", wait))
		middleware.WriteError(w, http.StatusTooManyRequests, api.ErrorResponse{
			Error:             auth.ErrCooldown.Error(),
			Message:           "please wait before requesting a new code",
			RetryAfterSeconds: middleware.RetryAfterSeconds(wait),
		})
	case auth.KindDelivery:
		h.logger.ErrorContext(ctx, "verification code delivery failed", slog.Any("error", err))
		h.sendError(w, auth.ErrDelivery.Error(), http.StatusInternalServerError)
	default:
		h.logger.ErrorContext(ctx, "internal error", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

// publicMessage возвращает сообщение sentinel ошибки без обернутых деталей
func publicMessage(err error) string {
	if errors.Is(err, validation.ErrValidation) {
		return err.Error()
	}
	for _, sentinel := range []error{
		auth.ErrAlreadyExists,
		auth.ErrCodeExpired,
		auth.ErrBadCredentials,
		auth.ErrCodeMismatch,
		auth.ErrTokenExpired,
		auth.ErrTokenInvalid,
		auth.ErrCodeNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}

// sendJSON отправляет JSON ответ
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	sendJSON(h.logger, w, data, statusCode)
}

// sendError отправляет JSON ответ с ошибкой
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	middleware.WriteError(w, statusCode, api.ErrorResponse{Error: message})
}

func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}
