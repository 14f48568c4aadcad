// Command matchctl runs matchings and manages preferences from the terminal
// against the same stores the server uses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/halisaha/teammatch/config"
	"github.com/halisaha/teammatch/internal/app"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/postgres"
	"github.com/halisaha/teammatch/pkg/logger"
)

func main() {
	e := &env{
		out:    os.Stdout,
		load:   loadContainer,
		openDB: openDatabase,
	}
	if err := newApp(e).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "matchctl: %v\n", err)
		os.Exit(1)
	}
}

func loadContainer(ctx context.Context) (*app.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.Observability.LogLevel
	if logger.ParseLevel(level) < slog.LevelWarn {
		level = "warn"
	}
	log := logger.New(logger.Options{
		Output: os.Stderr,
		Level:  level,
		Format: logger.FormatText,
	})
	return app.Build(ctx, cfg, log)
}

func openDatabase(ctx context.Context) (*postgres.Connection, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return postgres.NewConnectionFromURL(ctx, url)
}
