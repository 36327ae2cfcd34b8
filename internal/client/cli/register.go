package cli

import (
	"context"
	"errors"
	"fmt"
)

// ErrPasswordMismatch пароль и подтверждение не совпадают
var ErrPasswordMismatch = errors.New("passwords do not match")

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password (min 8 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	if password != confirm {
		return ErrPasswordMismatch
	}

	if err := c.service.Register(ctx, email, password); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Println("Run 'warehouse login' to sign in.")

	return nil
}
