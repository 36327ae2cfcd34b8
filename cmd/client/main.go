package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/warehouse/internal/client/api"
	"github.com/iudanet/warehouse/internal/client/auth"
	"github.com/iudanet/warehouse/internal/client/cli"
	"github.com/iudanet/warehouse/internal/client/iocli"
	"github.com/iudanet/warehouse/internal/client/storage/boltdb"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "warehouse-client.db", "Path to local session file")
	timeout := flag.Duration("timeout", api.DefaultTimeout, "HTTP request timeout")

	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	stdio := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(stdio)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if err := run(stdio, logger, *serverURL, *dbPath, *timeout, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(stdio iocli.IO, logger *slog.Logger, serverURL, dbPath string, timeout time.Duration, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Открываем BoltDB storage
	store, err := boltdb.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close session file", slog.Any("error", err))
		}
	}()

	apiClient := api.NewClient(serverURL, api.WithTimeout(timeout))

	c := cli.New(
		stdio,
		auth.NewService(apiClient, store),
		auth.NewManager(apiClient, store, logger),
	)

	return c.Run(ctx, args[0], args[1:])
}

func printVersion() {
	fmt.Printf("Warehouse Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
