// Package app wires configuration into a ready-to-use object graph shared by
// the server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/halisaha/teammatch/config"
	"github.com/halisaha/teammatch/internal/application/command"
	"github.com/halisaha/teammatch/internal/application/query"
	"github.com/halisaha/teammatch/internal/infrastructure/external/auth"
	"github.com/halisaha/teammatch/internal/infrastructure/external/directory"
	"github.com/halisaha/teammatch/internal/infrastructure/metrics"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/kv"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/postgres"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/redis"
	"github.com/halisaha/teammatch/internal/infrastructure/scheduler"
	"github.com/halisaha/teammatch/internal/infrastructure/scheduler/jobs"
	"github.com/halisaha/teammatch/internal/interface/http/handlers"
	"github.com/halisaha/teammatch/pkg/circuitbreaker"
	"github.com/halisaha/teammatch/pkg/timeutil"
)

const tracerName = "github.com/halisaha/teammatch"

// Container holds the wired application.
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store     kv.Store
	Directory *directory.Client
	Sessions  *auth.SessionVerifier
	Health    *handlers.CompositeHealthChecker

	// Scheduler is nil unless the backend needs housekeeping.
	Scheduler *scheduler.Scheduler

	FindTeammates     *query.FindTeammatesHandler
	GetPreferences    *query.GetPreferencesHandler
	GetFavorites      *query.GetFavoritesHandler
	UpdatePreferences *command.UpdatePreferencesHandler
	AddFavorite       *command.AddFavoriteHandler

	closers []func()
}

// Build connects the configured store and wires every handler.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Health:   handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	c.Metrics = metrics.New(c.Registry)

	if err := c.openStore(ctx); err != nil {
		c.Close()
		return nil, err
	}

	var clock timeutil.Clock = timeutil.SystemClock

	// ─────────────────────────────────────────────────────────────────────────
	// Directory
	// ─────────────────────────────────────────────────────────────────────────
	dirCfg := directory.DefaultClientConfig(cfg.Directory.BaseURL)
	dirCfg.Timeout = cfg.Directory.Timeout
	dirCfg.RequestsPerSecond = cfg.Directory.RequestsPerSecond
	dirCfg.Burst = cfg.Directory.Burst
	dirCfg.MaxAttempts = cfg.Directory.MaxAttempts
	dirCfg.RetryDelay = cfg.Directory.RetryDelay
	dirCfg.Logger = logger
	c.Directory = directory.NewClient(dirCfg)

	mapperOpts := []directory.MapperOption{
		directory.WithBaselineRating(cfg.Matching.BaselineRating),
		directory.WithClock(clock),
	}
	if cfg.Matching.Blacklist != nil {
		mapperOpts = append(mapperOpts, directory.WithBlacklist(cfg.Matching.Blacklist))
	}
	fetcher := directory.NewFetcher(c.Directory, directory.NewMapper(mapperOpts...), logger, c.Metrics)

	c.Health.AddCheck("directory", handlers.BreakerCheck(func() bool {
		return c.Directory.BreakerState() == circuitbreaker.StateOpen
	}))

	// ─────────────────────────────────────────────────────────────────────────
	// Sessions & profiles
	// ─────────────────────────────────────────────────────────────────────────
	c.Sessions = auth.NewSessionVerifier(cfg.Auth.SessionSecret, cfg.Auth.Issuer, clock)
	keyer := auth.NewKeyDeriver(cfg.Auth.KeySecret)
	profiles := query.NewProfileResolver(kv.NewProfileCache(c.Store, keyer, cfg.Store.ProfileTTL), c.Sessions, logger)

	prefs := kv.NewPreferenceStore(c.Store, logger, c.Metrics)
	favs := kv.NewFavoritesStore(c.Store, logger, c.Metrics)

	// ─────────────────────────────────────────────────────────────────────────
	// Handlers
	// ─────────────────────────────────────────────────────────────────────────
	c.FindTeammates = query.NewFindTeammatesHandler(profiles, prefs, fetcher, keyer, logger,
		query.WithTracer(otel.Tracer(tracerName)),
		query.WithRunRecorder(c.Metrics),
		query.WithRunClock(clock),
	)
	c.GetPreferences = query.NewGetPreferencesHandler(profiles, prefs)
	c.GetFavorites = query.NewGetFavoritesHandler(profiles, favs)
	c.UpdatePreferences = command.NewUpdatePreferencesHandler(profiles, prefs, logger)
	c.AddFavorite = command.NewAddFavoriteHandler(profiles, favs, logger)

	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	cfg := c.Config

	switch cfg.Store.Backend {
	case config.StoreRedis:
		rc := redis.DefaultConfig()
		rc.Host = cfg.Redis.Host
		rc.Port = cfg.Redis.Port
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		rc.KeyPrefix = cfg.Redis.KeyPrefix
		rc.PoolSize = cfg.Redis.PoolSize

		cache, err := redis.NewCache(rc)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = cache.Close() })
		c.Health.AddCheck("store", handlers.PingCheck(cache))
		c.Store = cache
		c.Logger.Info("using redis store", "addr", rc.Addr())

	case config.StorePostgres:
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL,
			postgres.WithMaxConns(int32(cfg.Database.MaxConns)),
			postgres.WithMaxConnLifetime(cfg.Database.MaxConnLifetime),
		)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, conn.Close)
		c.Health.AddCheck("store", handlers.PingCheck(conn))

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return err
			}
		}

		kvStore := postgres.NewKVStore(conn)
		c.Store = kvStore
		if cfg.Scheduler.Enabled {
			c.Scheduler = scheduler.New(scheduler.Config{
				Logger: c.Logger,
				OnJobComplete: func(r scheduler.JobResult) {
					if r.Error != nil {
						c.Metrics.StoreError("purge_expired")
					}
				},
			})
			job := jobs.NewPurgeExpiredJob(kvStore, cfg.Scheduler.JobTimeout, c.Logger)
			if err := c.Scheduler.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.PurgeInterval)); err != nil {
				return err
			}
		}
		c.Logger.Info("using postgres store")

	default:
		c.Store = kv.NewMemory()
		c.Logger.Info("using in-memory store; data is lost on restart")
	}
	return nil
}

// Close releases store connections in reverse order of opening.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// ShutdownContext returns a context bounded by the configured shutdown timeout.
func (c *Container) ShutdownContext() (context.Context, context.CancelFunc) {
	timeout := c.Config.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
