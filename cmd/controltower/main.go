package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pilotgb/control-tower/internal/api"
	"github.com/pilotgb/control-tower/internal/config"
	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/metrics"
	"github.com/pilotgb/control-tower/internal/overview"
	"github.com/pilotgb/control-tower/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var db store.Store
	if cfg.Database.URL == "" {
		db = store.NewMemoryStore()
		logger.Warn("no database configured, using in-memory store")
	} else {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if cfg.Database.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				logger.Error("failed to run migrations", "error", err)
				os.Exit(1)
			}
		}
		db = pg
		logger.Info("connected to database")
	}
	defer db.Close()

	// NATS (optional)
	var eventClient events.Client
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.NATS.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to nats, running without events", "error", err)
		} else {
			eventClient = nc
			defer nc.Close()
			logger.Info("connected to nats")
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Overview collector
	collector := overview.NewCollector(db, eventClient, m, cfg.OverviewInterval(), logger)
	collector.Start(ctx)
	defer collector.Stop()
	collector.SetupSubscriptions()
	logger.Info("overview collector started", "interval", cfg.OverviewInterval())

	gate := lifecycle.NewGate(db, logger, api.NewTransitionObserver(eventClient, m, logger), collector)

	// API server
	router := api.NewRouter(api.Deps{
		Store:              db,
		Gate:               gate,
		Events:             eventClient,
		Metrics:            m,
		Logger:             logger,
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(db, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	cancel()

	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Logging.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
