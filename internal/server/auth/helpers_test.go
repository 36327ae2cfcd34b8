package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/warehouse/internal/server/storage/sqlite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
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

// fakeSender запоминает отправленные коды
type fakeSender struct {
	err   error
	codes map[string]string
	mu    sync.Mutex
	calls int
}

func newFakeSender() *fakeSender {
	return &fakeSender{codes: make(map[string]string)}
}

func (s *fakeSender) SendCode(_ context.Context, email, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.codes[email] = code
	return nil
}

func (s *fakeSender) lastCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

func (s *fakeSender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStorage(t *testing.T) *sqlite.Storage {
	t.Helper()
	s, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type testEnv struct {
	store   *sqlite.Storage
	clock   *fakeClock
	sender  *fakeSender
	codes   *CodeEngine
	tokens  *TokenService
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := setupTestStorage(t)
	clock := newFakeClock()
	sender := newFakeSender()
	logger := discardLogger()

	codes := NewCodeEngine(store, sender, logger, WithCodeClock(clock.Now))
	tokens, err := NewTokenService(TokenConfig{
		Secret:          []byte("test-secret"),
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}, store, logger, WithTokenClock(clock.Now))
	require.NoError(t, err)

	return &testEnv{
		store:   store,
		clock:   clock,
		sender:  sender,
		codes:   codes,
		tokens:  tokens,
		service: NewService(store, codes, tokens, logger),
	}
}

func (e *testEnv) register(t *testing.T, email string) {
	t.Helper()
	_, err := e.service.Register(context.Background(), email, "hash-"+email)
	require.NoError(t, err)
}

var errSMTP = errors.New("smtp: connection refused")
