package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/warehouse/internal/server/config"
	"github.com/iudanet/warehouse/pkg/api"
)

func testConfig(t *testing.T, environ map[string]string) *config.Config {
	t.Helper()

	base := map[string]string{
		"WAREHOUSE_JWT_SECRET": "0123456789abcdef0123456789abcdef",
		"WAREHOUSE_DB_PATH":    ":memory:",
		"WAREHOUSE_ADDR":       "127.0.0.1:0",
		"WAREHOUSE_LOG_FORMAT": "text",
	}
	for k, v := range environ {
		base[k] = v
	}

	cfg, err := config.Load(nil, base)
	require.NoError(t, err)
	return cfg
}

func TestNewApp_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		environ map[string]string
		name    string
	}{
		{name: "memory", environ: map[string]string{"WAREHOUSE_RATE_LIMIT_BACKEND": "memory"}},
		{name: "sqlite", environ: map[string]string{"WAREHOUSE_RATE_LIMIT_BACKEND": "sqlite"}},
		{name: "redis", environ: map[string]string{
			"WAREHOUSE_RATE_LIMIT_BACKEND":    "redis",
			"WAREHOUSE_RATE_LIMIT_REDIS_ADDR": mr.Addr(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			cfg := testConfig(t, tt.environ)

			app, err := NewApp(context.Background(), cfg, NewLogger(cfg, &logs), "test")
			require.NoError(t, err)
			defer func() { assert.NoError(t, app.Close()) }()

			// Регистрация ограничена 1 запросом в минуту для любого бэкенда
			srv := httptest.NewServer(app.Handler())
			defer srv.Close()

			body := `{"email":"a@x.com","password_hash":"h"}`
			resp, err := http.Post(srv.URL+api.PathRegister, "application/json", bytes.NewBufferString(body))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp, err = http.Post(srv.URL+api.PathRegister, "application/json", bytes.NewBufferString(body))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

			assert.Contains(t, logs.String(), "rate limit counters in "+tt.name)
			assert.Contains(t, logs.String(), "SMTP is not configured")
		})
	}
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	var logs bytes.Buffer
	cfg := testConfig(t, map[string]string{
		"WAREHOUSE_RATE_LIMIT_BACKEND":    "redis",
		"WAREHOUSE_RATE_LIMIT_REDIS_ADDR": addr,
	})

	_, err := NewApp(context.Background(), cfg, NewLogger(cfg, &logs), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	var logs bytes.Buffer
	cfg := testConfig(t, map[string]string{"WAREHOUSE_RATE_LIMIT_BACKEND": "sqlite"})

	app, err := NewApp(context.Background(), cfg, NewLogger(cfg, &logs), "test")
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestApp_RunFailsOnBusyAddress(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	var logs bytes.Buffer
	cfg := testConfig(t, map[string]string{"WAREHOUSE_ADDR": busy.Listener.Addr().String()})

	app, err := NewApp(context.Background(), cfg, NewLogger(cfg, &logs), "test")
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t, map[string]string{"WAREHOUSE_LOG_FORMAT": "json", "WAREHOUSE_LOG_LEVEL": "warn"})

	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
