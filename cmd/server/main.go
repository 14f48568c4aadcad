// Package main - точка входа HTTP-сервиса подбора команды для халы саха.
//
// Сервис по сессии игрока собирает шестёрку: вратарь, защитники,
// полузащитник и нападающий под позицию инициатора.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/halisaha/teammatch/config"
	"github.com/halisaha/teammatch/internal/app"
	httpserver "github.com/halisaha/teammatch/internal/interface/http"
	"github.com/halisaha/teammatch/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  cfg.Observability.LogLevel,
		Format: logger.Format(cfg.Observability.LogFormat),
	})
	log.Info("starting teammatch",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"store", cfg.Store.Backend,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. СБОРКА ЗАВИСИМОСТЕЙ
	// ─────────────────────────────────────────────────────────────────────────
	c, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		log.Info("closing store connections...")
		c.Close()
	}()

	if c.Scheduler != nil {
		if err := c.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = c.Scheduler.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled

	srv := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Matcher:           c.FindTeammates,
		PreferencesReader: c.GetPreferences,
		PreferencesWriter: c.UpdatePreferences,
		FavoritesReader:   c.GetFavorites,
		FavoriteAdder:     c.AddFavorite,
		Logger:            log,
		HealthChecker:     c.Health,
		Gatherer:          c.Registry,
	})
	errCh := srv.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := c.ShutdownContext()
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}
