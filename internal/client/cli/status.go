package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/warehouse/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Saved Sessions ===")
	c.io.Println()

	sessions, err := c.manager.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'warehouse login' to authenticate.")
		return nil
	}

	now := c.now()
	for _, sess := range sessions {
		if sess.AccessExpired(now) {
			c.io.Printf("%s  access token expired (will refresh on next use)\n", sess.Email)
			continue
		}
		c.io.Printf("%s  access token valid for %s\n", sess.Email, sess.ExpiresAt.Sub(now).Round(time.Second))
	}

	return nil
}

func (c *Cli) runWhoAmI(ctx context.Context, args []string) error {
	email, err := c.sessionEmail(ctx, args)
	if err != nil {
		return err
	}

	user, err := c.manager.WhoAmI(ctx, email)
	if err != nil {
		return err
	}

	c.io.Printf("Authenticated as %s\n", user)
	return nil
}

func (c *Cli) runResume(ctx context.Context) error {
	sess, err := c.manager.Resume(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Resumed session for %s\n", sess.Email)
	return nil
}

// sessionEmail возвращает email из аргументов или единственной сохраненной сессии
func (c *Cli) sessionEmail(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	sessions, err := c.manager.Sessions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}

	switch len(sessions) {
	case 0:
		return "", auth.ErrNoSession
	case 1:
		return sessions[0].Email, nil
	}
	return "", errors.New("several sessions are saved, pass the email explicitly")
}
