// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/auth"
	authpg "github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/auth/rediscache"
	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/validate"
	"github.com/holomush/accountd/pkg/errutil"
)

// serveConfig holds serve flags that are not part of config.Config.
type serveConfig struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	sc := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account API and observability servers",
		Long: `Run the account HTTP API together with the metrics and health
server. Configuration comes from the config file, the environment and the
flags below, later sources overriding earlier ones.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return oops.With("operation", "validate configuration").Wrap(err)
			}
			return runServe(cmd.Context(), cfg, sc, cmd, nil)
		},
	}

	def := config.Default()
	flags := cmd.Flags()
	flags.BoolVar(&sc.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	flags.String("host", def.Host, "API listen host (APP_HOSTNAME)")
	flags.Int("port", def.Port, "API listen port (APP_PORT)")
	flags.String("metrics-addr", def.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("redis-url", def.RedisURL, "redis URL for the session cache (REDIS_URL)")
	flags.String("cache-backend", def.CacheBackend, "session cache backend (redis or postgres)")
	flags.String("environment", def.Environment, "production or development")
	flags.String("jwt-expiry", def.JWTExpiry.String(), "session token lifetime, e.g. 1d or 12h (JWT_EXPIRED)")
	flags.String("session-ttl", def.SessionTTL.String(), "how long issued tokens stay cached, e.g. 1h")
	flags.Bool("strict-sessions", def.StrictSessions, "require the presented token to match the cached one")
	flags.String("request-timeout", def.RequestTimeout.String(), "per-request deadline (0s = none)")

	return cmd
}

// runServe starts the API with injectable dependencies and blocks until
// ctx is cancelled, a termination signal arrives or a server fails.
func runServe(ctx context.Context, cfg config.Config, sc *serveConfig, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	logger, err := setupLogging(cfg, cmd)
	if err != nil {
		return err
	}

	logger.Info("starting accountd",
		"version", version,
		"listen_addr", cfg.ListenAddr(),
		"cache_backend", cfg.CacheBackend,
		"environment", cfg.Environment,
	)

	if sc.autoMigrate {
		if err := autoMigrate(cfg.DatabaseURL, deps.MigratorFactory); err != nil {
			return err
		}
	}

	pool, err := deps.PoolOpener(ctx, cfg.DatabaseURL, store.ConnectOptions{
		Attempts: cfg.ConnectAttempts,
		Backoff:  500 * time.Millisecond,
	})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	var (
		sessions   auth.SessionCache
		cacheCheck observability.Check
	)
	switch cfg.CacheBackend {
	case config.CachePostgres:
		sessions = authpg.NewSessionCache(pool)
		cacheCheck = pool.Ping
	default:
		client, err := deps.RedisDialer(ctx, cfg.RedisURL, cfg.ConnectAttempts)
		if err != nil {
			return oops.With("operation", "connect to redis").Wrap(err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Debug("error closing redis client", "error", closeErr)
			}
		}()
		cache := rediscache.New(client)
		sessions = cache
		cacheCheck = cache.Ping
	}
	logger.Info("session cache ready", "backend", cfg.CacheBackend)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		return oops.With("operation", "create token service").Wrap(err)
	}
	logger.Info("token service ready", "issuer", cfg.JWTIssuer, "token_expiry", tokens.Expiry().String())

	hasher := auth.NewArgon2idHasher(auth.Argon2Params{
		Time:    cfg.Argon2.Time,
		Memory:  cfg.Argon2.MemoryKiB,
		Threads: cfg.Argon2.Threads,
	})

	service, err := auth.NewService(authpg.NewAccountRepository(pool), sessions, hasher, tokens,
		auth.WithLogger(logger),
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithStrictSessions(cfg.StrictSessions),
	)
	if err != nil {
		return oops.With("operation", "create account service").Wrap(err)
	}

	validator, err := validate.New()
	if err != nil {
		return oops.With("operation", "compile request schemas").Wrap(err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, map[string]observability.Check{
			"database":      pool.Ping,
			"session_cache": cacheCheck,
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := httpapi.New(service, validator,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(metrics),
		httpapi.WithDevelopment(cfg.Development()),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return oops.With("operation", "create http handler").Wrap(err)
	}

	listener, err := deps.ListenerFactory("tcp", cfg.ListenAddr())
	if err != nil {
		stopObservability(logger, obsServer, cfg.ShutdownTimeout)
		return oops.With("operation", "listen").With("addr", cfg.ListenAddr()).Wrap(err)
	}

	apiServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	apiErrChan := make(chan error, 1)
	go func() {
		defer close(apiErrChan)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrChan <- serveErr
		}
	}()

	cmd.Println("accountd listening on " + listener.Addr().String())
	logger.Info("accountd ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case err, ok := <-apiErrChan:
		if ok && err != nil {
			serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(logger, obsServer, cfg.ShutdownTimeout)

	if serveErr != nil {
		errutil.LogError(ctx, logger, "api server failed", serveErr)
		return serveErr
	}
	logger.Info("shutdown complete")
	return nil
}

// autoMigrate applies pending migrations before the service starts.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error)) error {
	slog.Info("applying database migrations")
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	slog.Info("database migrations applied")
	return nil
}

func stopObservability(logger *slog.Logger, server ObservabilityServer, timeout time.Duration) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the process context when a background server
// fails. It exits when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
