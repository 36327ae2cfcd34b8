package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/warehouse/internal/client/api"
	"github.com/iudanet/warehouse/internal/client/auth"
	"github.com/iudanet/warehouse/internal/validation"
)

// maxCodePrompts сколько раз спрашиваем код, прежде чем сдаться
const maxCodePrompts = 10

// ErrLoginAborted вход не завершен: код истек или попытки исчерпаны
var ErrLoginAborted = errors.New("login aborted")

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	challenge, err := c.service.Login(ctx, email, password)
	if err != nil {
		return err
	}

	c.io.Printf("Verification code sent to %s\n", challenge.Email)

	for range maxCodePrompts {
		now := c.now()
		if challenge.Expired(now) {
			return fmt.Errorf("%w: verification code expired, run 'warehouse login' again", ErrLoginAborted)
		}

		input, err := c.io.ReadInput(fmt.Sprintf("Code (valid %s, r to resend): ", formatRemaining(challenge.Remaining(now))))
		if err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}
		input = strings.TrimSpace(input)

		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "r"):
			if err := c.resend(ctx, challenge); err != nil {
				return err
			}
			continue
		}

		sess, err := c.service.Verify(ctx, challenge.Email, input)
		if err == nil {
			c.io.Println()
			c.io.Println("✓ Login successful!")
			c.io.Printf("Email: %s\n", sess.Email)
			c.io.Printf("Access token expires: %s\n", sess.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		}

		if retry := c.codeRejected(err); !retry {
			return err
		}
	}

	return fmt.Errorf("%w: too many attempts", ErrLoginAborted)
}

// resend запрашивает новый код, если кулдаун прошел
func (c *Cli) resend(ctx context.Context, challenge *auth.Challenge) error {
	if wait := challenge.ResendIn(c.now()); wait > 0 {
		c.io.Printf("New code available in %s\n", formatRemaining(wait))
		return nil
	}

	err := c.service.ResendCode(ctx, challenge)
	var apiErr *api.Error
	switch {
	case err == nil:
		c.io.Println("Verification code sent again")
		return nil
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		c.io.Printf("New code available in %s\n", formatRemaining(apiErr.RetryAfter))
		return nil
	}
	return err
}

// codeRejected печатает причину отказа и сообщает, можно ли ввести код еще раз
func (c *Cli) codeRejected(err error) bool {
	var apiErr *api.Error
	switch {
	case errors.Is(err, validation.ErrValidation):
		c.io.Println("Code must be 6 digits")
		return true
	case errors.Is(err, api.ErrUnauthorized):
		c.io.Println("Invalid code, try again")
		return true
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		c.io.Printf("Too many attempts, retry in %s\n", formatRemaining(apiErr.RetryAfter))
		return true
	}
	return false
}

// formatRemaining форматирует обратный отсчет как m:ss
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
