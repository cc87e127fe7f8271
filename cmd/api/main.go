// Package main is the entry point for the LeanPulse notification API.
//
// It loads configuration, opens the Postgres pool, builds the channel senders
// and the dispatcher, and serves the /v1 routes on the core chassis. Incident
// events are published to SQS when SQS_EVENTS is set and run inline
// otherwise.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/klauspost/compress/gzhttp"

	"leanpulse/internal/api/handlers"
	"leanpulse/internal/app"
	"leanpulse/internal/config"
	"leanpulse/internal/core"
	"leanpulse/internal/db"
	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/queue"
	"leanpulse/internal/reports"
	"leanpulse/internal/triggers"
	"leanpulse/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("leanpulse API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return fmt.Errorf("loading facility time zone: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		pool.Close()
		return err
	}

	libLogger := types.NewSlogAdapter(logger)

	channels, err := app.NewChannels(cfg, libLogger)
	if err != nil {
		pool.Close()
		return err
	}
	senders := channels.Senders
	metrics := app.Metrics(cfg, awsCfg, libLogger)

	logs := db.NewNotificationLogRepository(pool)
	prefs := db.NewPreferenceRepository(pool)
	schedules := db.NewScheduledReportRepository(pool)
	compiler := reports.NewCompiler(db.NewMetricsRepository(pool), loc)
	dispatcher := app.NewDispatcher(cfg, logs, senders, metrics, libLogger)

	trigger := triggers.NewService(triggers.Config{
		Resolver:   recipients.NewResolver(prefs),
		Tasks:      db.NewTaskRepository(pool),
		Compiler:   compiler,
		Dispatcher: dispatcher,
		Location:   loc,
		Logger:     libLogger.With("component", "triggers"),
	})

	var publisher handlers.IncidentPublisher
	if cfg.AWS.EventQueueURL != "" {
		publisher = queue.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.EventQueueURL, types.RealClock{}, libLogger)
		logger.Info("incident events will be queued", "queue_url", cfg.AWS.EventQueueURL)
	} else {
		logger.Warn("SQS_EVENTS not set, incident triggers run inline")
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	if metrics != nil {
		srv.Metrics = metrics
	}
	srv.HealthProbes = append(srv.HealthProbes, &core.DatabaseProbe{DB: pool})
	srv.HealthProbes = append(srv.HealthProbes, channels.HealthProbes()...)
	srv.OnShutdown = append(srv.OnShutdown, pool.Close)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		handlers.NewNotificationHandler(dispatcher, logs, srv.Validator, logger).RegisterRoutes,
		handlers.NewPreferenceHandler(prefs, srv.Validator, logger).RegisterRoutes,
		handlers.NewReportHandler(schedules, compiler, srv.Validator, logger, loc).RegisterRoutes,
		handlers.NewEventHandler(publisher, trigger, srv.Validator, logger).RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// httpHandler wraps the router with response compression when enabled.
func httpHandler(srv *core.Server, enableGzip bool) http.Handler {
	h := srv.Handler()
	if enableGzip {
		return gzhttp.GzipHandler(h)
	}
	return h
}

// runHTTPServer starts the server with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           httpHandler(srv, cfg.Server.EnableGzip),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
