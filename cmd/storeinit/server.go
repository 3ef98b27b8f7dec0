package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"internet-store/storeinit/internal/orchestrator"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the initializer HTTP API server",
	Long: `Start the HTTP server on the configured port (default :8081).

Routes:
  POST /api/v1/bootstrap   start a run (409 while one is in progress)
  GET  /api/v1/bootstrap   result of the last run
  GET  /health             liveness
  GET  /health/deep        mongo, redis and nats probes
  GET  /ready              200 once a run has succeeded
  GET  /metrics            Prometheus metrics

With server.bootstrap_on_start set, a bootstrap run is started as soon as the
server is listening. It shuts down cleanly on SIGTERM or SIGINT.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := app.newOrchestrator()
	router := app.newRouter(o)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("storeinit server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Server.BootstrapOnStart {
		go bootstrapOnStart(ctx, o)
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	app.Close(shutCtx)

	slog.Info("server stopped cleanly")
	return nil
}

// bootstrapOnStart runs one bootstrap bounded by bootstrap.timeout. A shutdown
// signal cancels it.
func bootstrapOnStart(ctx context.Context, o *orchestrator.Orchestrator) {
	if cfg.Bootstrap.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bootstrap.Timeout)
		defer cancel()
	}
	if _, err := o.RunBootstrap(ctx); err != nil {
		slog.Error("startup bootstrap failed", "err", err)
	}
}
