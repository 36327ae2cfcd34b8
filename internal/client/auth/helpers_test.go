package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/warehouse/internal/client/api"
	"github.com/iudanet/warehouse/internal/client/storage"
	"github.com/iudanet/warehouse/internal/client/storage/boltdb"
	pkgapi "github.com/iudanet/warehouse/pkg/api"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// apiClientMock реализует APIClient через подменяемые функции
type apiClientMock struct {
	RegisterFunc   func(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.MessageResponse, error)
	LoginFunc      func(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error)
	ResendCodeFunc func(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error)
	VerifyFunc     func(ctx context.Context, req pkgapi.VerifyRequest) (*pkgapi.TokenResponse, error)
	RefreshFunc    func(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
	LogoutFunc     func(ctx context.Context, accessToken string) error
	TestAuthFunc   func(ctx context.Context, accessToken string) (*pkgapi.TestAuthResponse, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *apiClientMock) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *apiClientMock) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *apiClientMock) Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.MessageResponse, error) {
	m.record("Register")
	return m.RegisterFunc(ctx, req)
}

func (m *apiClientMock) Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error) {
	m.record("Login")
	return m.LoginFunc(ctx, req)
}

func (m *apiClientMock) ResendCode(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.LoginResponse, error) {
	m.record("ResendCode")
	return m.ResendCodeFunc(ctx, req)
}

func (m *apiClientMock) Verify(ctx context.Context, req pkgapi.VerifyRequest) (*pkgapi.TokenResponse, error) {
	m.record("Verify")
	return m.VerifyFunc(ctx, req)
}

func (m *apiClientMock) Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error) {
	m.record("Refresh")
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *apiClientMock) Logout(ctx context.Context, accessToken string) error {
	m.record("Logout")
	return m.LogoutFunc(ctx, accessToken)
}

func (m *apiClientMock) TestAuth(ctx context.Context, accessToken string) (*pkgapi.TestAuthResponse, error) {
	m.record("TestAuth")
	return m.TestAuthFunc(ctx, accessToken)
}

func setupTestStore(t *testing.T) *boltdb.Storage {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func saveSession(t *testing.T, store storage.SessionStorage, email, access, refresh string) {
	t.Helper()
	require.NoError(t, store.SaveSession(context.Background(), &storage.Session{
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    testNow.Add(30 * time.Minute),
		UpdatedAt:    testNow,
	}))
}

func unauthorized(msg string) error {
	return &api.Error{StatusCode: http.StatusUnauthorized, Message: msg}
}
