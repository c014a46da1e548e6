package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/api/middleware"
	"github.com/cloo-solutions/draftgate/internal/config"
	"github.com/cloo-solutions/draftgate/internal/database"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/server"
	"github.com/cloo-solutions/draftgate/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and job workers",
		Long:  "Start the draftgate HTTP API together with the revision and memory embedding workers",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides DRAFTGATE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-workers", false, "Serve the API without draining job queues")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.HasSentry() {
		// 10% sampling in production, everything elsewhere
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
			Logger:           logger,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTelemetry()
		}
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsURL, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	completion, err := newCompletionClient(cfg)
	if err != nil {
		return err
	}
	deps := Deps{
		Pool:       pool,
		Completion: completion,
		Metrics:    metrics.NewMetrics(),
		Logger:     logger,
	}
	// Embeddings are only served by OpenAI, whatever the completion provider.
	if cfg.HasOpenAI() {
		deps.Embedder = newOpenAIClient(cfg)
	}

	a, err := NewApp(cfg, deps)
	if err != nil {
		return err
	}

	noWorkers, _ := cmd.Flags().GetBool("no-workers")
	if !noWorkers {
		a.Start(ctx)
	}

	routerCfg := server.RouterConfig{
		GateHandler:     a.GateHandler,
		RevisionHandler: a.RevisionHandler,
		Logger:          logger.Named("http"),
	}
	if cfg.HasAPI() {
		routerCfg.TokenValidator = middleware.StaticTokens{cfg.APIToken: "default"}
	} else {
		logger.Warn("API_TOKEN not set: only /health and /metrics are served")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
		if !noWorkers {
			a.Stop()
		}
		return fmt.Errorf("server failed: %w", err)
	}

	if !noWorkers {
		a.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
