package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/warehouse/internal/server/auth"
	"github.com/iudanet/warehouse/internal/server/middleware"
	"github.com/iudanet/warehouse/internal/server/ratelimit"
	"github.com/iudanet/warehouse/internal/server/storage/sqlite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSender struct {
	err   error
	codes map[string]string
	mu    sync.Mutex
}

func (s *fakeSender) SendCode(_ context.Context, email, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes[email] = code
	return nil
}

func (s *fakeSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store   *sqlite.Storage
	clock   *fakeClock
	sender  *fakeSender
	service *auth.Service
	handler *AuthHandler
}

func newTestEnv(t *testing.T, rules map[ratelimit.Class]ratelimit.Rule) *testEnv {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := setupTestLogger()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	sender := &fakeSender{codes: make(map[string]string)}

	codes := auth.NewCodeEngine(store, sender, logger, auth.WithCodeClock(clock.Now))
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("test-secret")}, store, logger,
		auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	service := auth.NewService(store, codes, tokens, logger)

	memStore := ratelimit.NewMemoryStore(time.Minute)
	t.Cleanup(memStore.Stop)
	limiter := ratelimit.New(memStore, rules, logger)

	return &testEnv{
		store:   store,
		clock:   clock,
		sender:  sender,
		service: service,
		handler: NewAuthHandler(logger, service, limiter),
	}
}

// do вызывает handler с JSON телом
func do(t *testing.T, h http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// doAs вызывает защищенный handler от имени email (как после AuthMiddleware)
func doAs(t *testing.T, h http.HandlerFunc, method, path, email string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if email != "" {
		req = req.WithContext(middleware.WithEmail(req.Context(), email))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}
