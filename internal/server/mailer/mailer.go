// Package mailer delivers verification codes by email.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

// Sender доставляет код подтверждения пользователю
type Sender interface {
	// SendCode отправляет код на email. Ошибка означает, что код не доставлен.
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// Config SMTP параметры
type Config struct {
	Host     string
	Username string
	Password string
	From     string
	Port     int
}

// Validate проверяет, что конфигурация SMTP заполнена
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP host")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP port")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP from address")
	}
	return nil
}

// dialer абстракция над gomail.Dialer для тестов
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender отправляет коды через SMTP
type SMTPSender struct {
	dialer dialer
	logger *slog.Logger
	from   string
}

// NewSMTPSender создает SMTP отправителя
func NewSMTPSender(cfg Config, logger *slog.Logger) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mailer configuration: %w", err)
	}

	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
		from:   cfg.From,
	}, nil
}

// SendCode отправляет письмо с кодом
func (s *SMTPSender) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	msg := newCodeMessage(s.from, email, code, expiresAt)

	// gomail не принимает context, поэтому отправляем в горутине и ждем отмены
	errC := make(chan error, 1)
	go func() {
		errC <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("failed to send verification email: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("failed to send verification email: %w", ctx.Err())
	}

	s.logger.InfoContext(ctx, "verification code sent", slog.String("email", email))
	return nil
}

// newCodeMessage собирает письмо с кодом подтверждения
func newCodeMessage(from, to, code string, expiresAt time.Time) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Код подтверждения")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Ваш код подтверждения: %s\nКод действителен до %s UTC.\n",
		code, expiresAt.UTC().Format("15:04:05"),
	))
	return msg
}

// LogSender пишет код в лог вместо отправки (локальная разработка без SMTP)
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender создает LogSender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendCode логирует код
func (s *LogSender) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	s.logger.WarnContext(ctx, "SMTP is not configured, verification code written to log",
		slog.String("email", email),
		slog.String("code", code),
		slog.Time("expires_at", expiresAt))
	return nil
}
