package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/warehouse/internal/server/auth"
	"github.com/iudanet/warehouse/internal/server/config"
	"github.com/iudanet/warehouse/internal/server/mailer"
	"github.com/iudanet/warehouse/internal/server/ratelimit"
	"github.com/iudanet/warehouse/internal/server/storage/sqlite"
)

// redisKeyPrefix префикс ключей счетчиков в Redis
const redisKeyPrefix = "warehouse:ratelimit:"

// App собранный сервер: хранилище, сервисы и HTTP router
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Storage
	handler http.Handler
	closers []func() error
	sweep   func(ctx context.Context)
}

// NewLogger создает slog логгер в формате из конфигурации
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewApp открывает хранилища и собирает HTTP router
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		closers: []func() error{store.Close},
	}

	counters, err := app.newCounterStore(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	codes := auth.NewCodeEngine(store, sender, logger,
		auth.WithCodeTTL(cfg.CodeTTL),
		auth.WithCodeCooldown(cfg.CodeCooldown))

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:          []byte(cfg.JWTSecret),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, store, logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	app.handler = NewRouter(Deps{
		Logger:     logger,
		Service:    auth.NewService(store, codes, tokens, logger),
		Limiter:    ratelimit.New(counters, cfg.Rules(), logger),
		Version:    version,
		TrustProxy: cfg.TrustProxy,
	})

	return app, nil
}

// newCounterStore выбирает хранилище счетчиков rate limit
func (a *App) newCounterStore(ctx context.Context) (ratelimit.Store, error) {
	switch a.cfg.RateLimit.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RateLimit.RedisAddr,
			Password: a.cfg.RateLimit.RedisPassword,
			DB:       a.cfg.RateLimit.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.InfoContext(ctx, "rate limit counters in redis", slog.String("addr", a.cfg.RateLimit.RedisAddr))
		return ratelimit.NewRedisStore(client, redisKeyPrefix), nil

	case config.BackendSQLite:
		// Истекшие строки не мешают подсчету, но копятся; чистим раз в окно
		a.sweep = func(ctx context.Context) {
			a.sweepCounters(ctx, a.cfg.RateLimit.Window)
		}
		a.logger.InfoContext(ctx, "rate limit counters in sqlite")
		return a.store, nil

	default:
		mem := ratelimit.NewMemoryStore(a.cfg.RateLimit.Window)
		a.closers = append(a.closers, func() error {
			mem.Stop()
			return nil
		})
		a.logger.InfoContext(ctx, "rate limit counters in memory")
		return mem, nil
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) (mailer.Sender, error) {
	if !cfg.SMTP.Enabled() {
		logger.Warn("SMTP is not configured, verification codes will be written to log")
		return mailer.NewLogSender(logger), nil
	}

	sender, err := mailer.NewSMTPSender(cfg.SMTP.Mailer(), logger)
	if err != nil {
		return nil, err
	}
	return sender, nil
}

// Handler HTTP router приложения
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run обслуживает HTTP до отмены ctx, затем корректно завершает соединения
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	if a.sweep != nil {
		go a.sweep(ctx)
	}

	errC := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "server listening", slog.String("addr", a.cfg.Addr))
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// sweepCounters периодически удаляет истекшие счетчики из SQLite
func (a *App) sweepCounters(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.store.DeleteExpiredCounters(ctx)
			if err != nil {
				a.logger.WarnContext(ctx, "failed to delete expired counters", slog.Any("error", err))
				continue
			}
			if n > 0 {
				a.logger.DebugContext(ctx, "expired counters deleted", slog.Int("count", n))
			}
		}
	}
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
