// Package config loads server settings from WAREHOUSE_* environment
// variables, with a few command-line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/iudanet/warehouse/internal/server/mailer"
	"github.com/iudanet/warehouse/internal/server/ratelimit"
)

// EnvPrefix префикс всех переменных окружения сервера
const EnvPrefix = "WAREHOUSE_"

// Бэкенды счетчиков rate limit
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// minSecretLen минимальная длина ключа подписи HS256
const minSecretLen = 32

// Config настройки сервера
type Config struct {
	Addr            string          `env:"ADDR" envDefault:":8080"`
	DatabasePath    string          `env:"DB_PATH" envDefault:"warehouse.db"`
	JWTSecret       string          `env:"JWT_SECRET"`
	LogFormat       string          `env:"LOG_FORMAT" envDefault:"json"`
	SMTP            SMTPConfig      `envPrefix:"SMTP_"`
	RateLimit       RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	AccessTokenTTL  time.Duration   `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL time.Duration   `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	CodeTTL         time.Duration   `env:"CODE_TTL" envDefault:"5m"`
	CodeCooldown    time.Duration   `env:"CODE_COOLDOWN" envDefault:"60s"`
	ShutdownTimeout time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        slog.Level      `env:"LOG_LEVEL" envDefault:"info"`
	TrustProxy      bool            `env:"TRUST_PROXY"`
}

// SMTPConfig настройки отправки писем. Пустой Host означает вывод кодов в лог.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
	Port     int    `env:"PORT" envDefault:"587"`
}

// RateLimitConfig лимиты по классам эндпоинтов
type RateLimitConfig struct {
	Backend       string        `env:"BACKEND" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	Window        time.Duration `env:"WINDOW" envDefault:"60s"`
	RedisDB       int           `env:"REDIS_DB"`
	Register      int           `env:"REGISTER" envDefault:"1"`
	Login         int           `env:"LOGIN" envDefault:"3"`
	Verify        int           `env:"VERIFY" envDefault:"3"`
	Resend        int           `env:"RESEND" envDefault:"3"`
	VerifyEmail   int           `env:"VERIFY_EMAIL" envDefault:"5"`
}

// Load читает конфигурацию из окружения и флагов.
// environ nil означает окружение процесса.
func Load(args []string, environ map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := parseFlags(&cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// parseFlags переопределяет часть настроек флагами командной строки
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("warehouse-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "address and port to run server")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to SQLite database")
	fs.StringVar(&cfg.RateLimit.Backend, "rate-limit-backend", cfg.RateLimit.Backend, "rate limit counters: memory, sqlite or redis")
	fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("%sJWT_SECRET must be at least %d bytes", EnvPrefix, minSecretLen))
	}
	if c.Addr == "" {
		errs = append(errs, fmt.Errorf("address cannot be empty"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("database path cannot be empty"))
	}
	for name, d := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":  c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": c.RefreshTokenTTL,
		"CODE_TTL":          c.CodeTTL,
		"RATE_LIMIT_WINDOW": c.RateLimit.Window,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s%s must be positive", EnvPrefix, name))
		}
	}
	if c.CodeCooldown < 0 {
		errs = append(errs, fmt.Errorf("%sCODE_COOLDOWN cannot be negative", EnvPrefix))
	}

	switch c.RateLimit.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT_REDIS_ADDR is required for redis backend", EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	if c.SMTP.Enabled() {
		if err := c.SMTP.Mailer().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Rules возвращает правила лимитера.
// Окно verify-email совпадает со временем жизни кода: не более N попыток на один код.
func (c *Config) Rules() map[ratelimit.Class]ratelimit.Rule {
	rl := c.RateLimit
	return map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassRegister:    {Limit: rl.Register, Window: rl.Window},
		ratelimit.ClassLogin:       {Limit: rl.Login, Window: rl.Window},
		ratelimit.ClassVerify:      {Limit: rl.Verify, Window: rl.Window},
		ratelimit.ClassResend:      {Limit: rl.Resend, Window: rl.Window},
		ratelimit.ClassVerifyEmail: {Limit: rl.VerifyEmail, Window: c.CodeTTL},
	}
}

// Enabled сообщает, настроен ли SMTP
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// Mailer преобразует настройки в mailer.Config
func (s SMTPConfig) Mailer() mailer.Config {
	return mailer.Config{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
	}
}
