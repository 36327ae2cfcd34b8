package auth

import (
	"context"
	"time"

	"github.com/iudanet/warehouse/internal/client/api"
	pkgapi "github.com/iudanet/warehouse/pkg/api"
)

// APIClient описывает вызовы сервера, нужные сервису авторизации
// Реализуется *api.Client
type APIClient interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.MessageResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error)
	ResendCode(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error)
	Verify(ctx context.Context, req pkgapi.VerifyRequest) (*pkgapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	TestAuth(ctx context.Context, accessToken string) (*pkgapi.TestAuthResponse, error)
}

var _ APIClient = (*api.Client)(nil)

// Option настраивает Service и Manager
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
