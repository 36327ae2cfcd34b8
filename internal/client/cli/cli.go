// Package cli реализует команды клиента warehouse.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/warehouse/internal/client/api"
	"github.com/iudanet/warehouse/internal/client/auth"
	"github.com/iudanet/warehouse/internal/client/iocli"
)

// ErrUnknownCommand неизвестная команда
var ErrUnknownCommand = errors.New("unknown command")

type Cli struct {
	io      iocli.IO
	service *auth.Service
	manager *auth.Manager
	now     func() time.Time
}

func New(io iocli.IO, service *auth.Service, manager *auth.Manager) *Cli {
	return &Cli{
		io:      io,
		service: service,
		manager: manager,
		now:     time.Now,
	}
}

// Run выполняет команду, args не включают имя команды
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	var err error
	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx)
	case "logout":
		err = c.runLogout(ctx, args)
	case "status":
		err = c.runStatus(ctx)
	case "whoami":
		err = c.runWhoAmI(ctx, args)
	case "resume":
		err = c.runResume(ctx)
	default:
		PrintUsage(c.io)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return explain(err)
}

// explain добавляет к ошибке подсказку для пользователя
func explain(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrConnectivity):
		return fmt.Errorf("server is unreachable, check -server and try again: %w", err)
	case errors.Is(err, auth.ErrReloginRequired), errors.Is(err, auth.ErrNoSession):
		return fmt.Errorf("%w (run 'warehouse login')", err)
	case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
		return fmt.Errorf("%w (retry in %s)", err, apiErr.RetryAfter)
	}
	return err
}

func PrintUsage(out iocli.IO) {
	out.Println("Warehouse Client")
	out.Println()
	out.Println("Usage:")
	out.Println("  warehouse [OPTIONS] COMMAND [ARGS]")
	out.Println()
	out.Println("Options:")
	out.Println("  -version           Show version information")
	out.Println("  -server URL        Server URL (default: http://localhost:8080)")
	out.Println("  -db PATH           Path to local session file (default: warehouse-client.db)")
	out.Println("  -timeout DURATION  HTTP request timeout (default: 10s)")
	out.Println()
	out.Println("Commands:")
	out.Println("  register           Register new user")
	out.Println("  login              Login with password and emailed code")
	out.Println("  logout [email]     Logout and delete the saved session")
	out.Println("  status             List saved sessions")
	out.Println("  whoami [email]     Ask the server who the session belongs to")
	out.Println("  resume             Continue with the first saved session the server accepts")
	out.Println()
	out.Println("Examples:")
	out.Println("  warehouse register")
	out.Println("  warehouse login")
	out.Println("  warehouse -server https://warehouse.example.com whoami user@example.com")
}
