package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runLogout(ctx context.Context, args []string) error {
	c.io.Println("=== Logout ===")

	email, err := c.sessionEmail(ctx, args)
	if err != nil {
		return err
	}

	if err := c.manager.Logout(ctx, email); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Printf("✓ Logged out %s\n", email)
	c.io.Println("Your local session has been deleted.")

	return nil
}
