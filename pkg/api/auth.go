package api

import "time"

// TokenTypeBearer тип токена в ответах /verify и /refresh-token
const TokenTypeBearer = "bearer"

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`   // email пользователя
	PasswordHash string `json:"password_hash" validate:"required,max=512"` // хеш пароля, вычисленный клиентом
}

// LoginRequest представляет первый шаг входа (проверка пароля и отправка кода)
// Используется также для /resend-code
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	PasswordHash string `json:"password_hash" validate:"required,max=512"`
}

// VerifyRequest представляет второй шаг входа (проверка кода из письма)
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

// RefreshRequest представляет запрос на ротацию refresh token
type RefreshRequest struct {
	CurrentRefreshToken string `json:"current_refresh_token" validate:"required,max=128"`
}

// MessageResponse простой ответ с сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginResponse ответ на /login и /resend-code
// Временные метки позволяют клиенту показывать обратный отсчет без таймеров
type LoginResponse struct {
	CodeExpiresAt     time.Time `json:"code_expires_at"`     // до какого момента код действителен
	ResendAvailableAt time.Time `json:"resend_available_at"` // когда можно запросить новый код
	Message           string    `json:"message"`
}

// TokenResponse представляет ответ с парой токенов
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // JWT access token
	RefreshToken string `json:"refresh_token"` // refresh token
	TokenType    string `json:"token_type"`    // всегда "bearer"
	ExpiresIn    int64  `json:"expires_in"`    // время жизни access token в секундах
}

// TestAuthResponse ответ защищенного эндпоинта /test-auth
type TestAuthResponse struct {
	Message string `json:"message"`
	User    string `json:"user"` // email из access token
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error             string `json:"error"`                         // описание ошибки
	Message           string `json:"message,omitempty"`             // дополнительное сообщение
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"` // подсказка для 429
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
