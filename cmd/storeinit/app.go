package main

import (
	"context"
	"log/slog"

	"internet-store/storeinit/internal/api"
	"internet-store/storeinit/internal/clients"
	"internet-store/storeinit/internal/config"
	"internet-store/storeinit/internal/orchestrator"
	"internet-store/storeinit/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// server.go and bootstrap.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider

	store     *clients.MongoClient
	locker    *clients.RedisClient
	announcer *clients.NATSClient
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Creates the Mongo store
//  3. Creates the Redis lock when bootstrap.lock.enabled is set
//  4. Creates the NATS announcer when bootstrap.nats.url is set
//
// No client connects here; each one dials on first use.
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// An empty endpoint disables telemetry entirely, which avoids the SDK's
	// periodic-reader noise when no collector is running locally.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
			// Keep the stderr handler and add OTEL logs.
			slog.SetDefault(slog.New(telemetry.NewTeeHandler(
				slog.Default().Handler(),
				tp.LogHandler,
			)))
		}
	}

	// One circuit breaker per client so each dependency trips independently.
	app.store = clients.NewMongoClient(cfg.Bootstrap.Mongo, clients.NewCircuitBreaker("mongo"))

	if cfg.Bootstrap.Lock.Enabled {
		app.locker = clients.NewRedisClient(cfg.Bootstrap.Redis, cfg.Bootstrap.Lock, clients.NewCircuitBreaker("redis"))
	}
	if cfg.Bootstrap.NATS.URL != "" {
		app.announcer = clients.NewNATSClient(cfg.Bootstrap.NATS, clients.NewCircuitBreaker("nats"))
	}

	return app, nil
}

// newOrchestrator wires the configured clients into an orchestrator. extra
// options are applied last.
func (a *AppContext) newOrchestrator(extra ...orchestrator.Option) *orchestrator.Orchestrator {
	settings := orchestrator.Settings{
		AdminEmail:        a.cfg.Bootstrap.Seed.AdminEmail,
		AdminPasswordHash: a.cfg.Bootstrap.Seed.AdminPasswordHash,
		SeedCatalog:       a.cfg.Bootstrap.Seed.Catalog,
		StrictIndexes:     a.cfg.Bootstrap.Indexes.Strict,
		LockBackoff:       a.cfg.Bootstrap.RetryBackoff,
	}

	var opts []orchestrator.Option
	if a.locker != nil {
		opts = append(opts, orchestrator.WithLocker(a.locker))
	}
	if a.announcer != nil {
		opts = append(opts, orchestrator.WithAnnouncer(a.announcer))
	}
	opts = append(opts, extra...)

	return orchestrator.New(a.store, settings, opts...)
}

// newRouter builds the HTTP API around o.
func (a *AppContext) newRouter(o *orchestrator.Orchestrator) *api.Router {
	return api.NewRouter(o, api.RouterConfig{
		ServiceName:      a.cfg.Telemetry.ServiceName,
		BootstrapTimeout: a.cfg.Bootstrap.Timeout,
	})
}

// Close releases every client and flushes telemetry. ctx should have a
// deadline.
func (a *AppContext) Close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		slog.Warn("closing mongo client", "err", err)
	}
	if a.locker != nil {
		if err := a.locker.Close(); err != nil {
			slog.Warn("closing redis client", "err", err)
		}
	}
	if err := a.otelProvider.Shutdown(ctx); err != nil {
		slog.Warn("OTEL shutdown error", "err", err)
	}
}
