// Package api is the HTTP client of the warehouse authentication server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/warehouse/pkg/api"
)

// DefaultTimeout таймаут HTTP запросов по умолчанию
const DefaultTimeout = 10 * time.Second

// maxResponseBytes ограничение размера ответа сервера
const maxResponseBytes = 1 << 20

var (
	// ErrUnauthorized сервер ответил 401 (неверные данные, код или токен)
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConnectivity сервер недоступен или не ответил вовремя
	ErrConnectivity = errors.New("server unreachable")
)

// Error ответ сервера с кодом ошибки
type Error struct {
	Message    string
	Detail     string
	StatusCode int
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, msg)
}

// Unwrap позволяет проверять 401 через errors.Is(err, ErrUnauthorized)
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// StatusCode возвращает HTTP статус из ошибки сервера (0 если это не ответ сервера)
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option настраивает Client
type Option func(*Client)

// WithTimeout задает таймаут запросов
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient подменяет http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathRegister, "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login проверяет пароль и запрашивает код на email
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathLogin, "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// ResendCode запрашивает код повторно
func (c *Client) ResendCode(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathResendCode, "", req, &resp); err != nil {
		return nil, fmt.Errorf("resend code request failed: %w", err)
	}
	return &resp, nil
}

// Verify обменивает код на пару токенов
func (c *Client) Verify(ctx context.Context, req api.VerifyRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathVerify, "", req, &resp); err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	return &resp, nil
}

// Refresh ротирует refresh token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	req := api.RefreshRequest{CurrentRefreshToken: refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, api.PathRefreshToken, "", req, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает refresh token на сервере
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.doRequest(ctx, http.MethodPost, api.PathLogout, accessToken, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// TestAuth проверяет access token и возвращает его владельца
func (c *Client) TestAuth(ctx context.Context, accessToken string) (*api.TestAuthResponse, error) {
	var resp api.TestAuthResponse
	if err := c.doRequest(ctx, http.MethodGet, api.PathTestAuth, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("test-auth request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Отмена контекста вызывающей стороной не считается недоступностью сервера
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrConnectivity, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func newError(resp *http.Response, body []byte) *Error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		apiErr.Message = errResp.Error
		apiErr.Detail = errResp.Message
		if errResp.RetryAfterSeconds > 0 {
			apiErr.RetryAfter = time.Duration(errResp.RetryAfterSeconds) * time.Second
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	if apiErr.RetryAfter == 0 {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return apiErr
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, api.PathHealth, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}
