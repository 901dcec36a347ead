package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haleview/clinic-scheduler/internal/api/router"
	"github.com/haleview/clinic-scheduler/internal/appointment"
	appconfig "github.com/haleview/clinic-scheduler/internal/config"
	"github.com/haleview/clinic-scheduler/internal/events"
	"github.com/haleview/clinic-scheduler/internal/http/handlers"
	"github.com/haleview/clinic-scheduler/internal/observability/metrics"
	"github.com/haleview/clinic-scheduler/internal/schedule"
	"github.com/haleview/clinic-scheduler/pkg/logging"
)

// loggingDeliveryHandler is the default outbox sink until the booking
// workflow consumer is attached.
type loggingDeliveryHandler struct {
	logger *logging.Logger
}

func (h *loggingDeliveryHandler) Handle(_ context.Context, entry events.OutboxEntry) error {
	h.logger.Info("schedule event delivered",
		"event_id", entry.ID, "type", entry.Type, "doctor_id", entry.DoctorID)
	return nil
}

func main() {
	// Local development convenience; absence of .env is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	schedMetrics := metrics.NewSchedulingMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without DATABASE_URL the server runs on in-memory stores; useful for
	// local development and demos.
	var scheduleRepo schedule.Repository = schedule.NewInMemoryRepository()
	var appointmentRepo appointment.Repository = appointment.NewInMemoryRepository()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		scheduleRepo = schedule.NewPostgresRepository(pool)
		appointmentRepo = appointment.NewPostgresRepository(pool)

		outbox := events.NewOutboxStore(pool)
		deliverer := events.NewDeliverer(outbox, &loggingDeliveryHandler{logger: logger.WithComponent("events")}, logger)
		go deliverer.Start(ctx)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	scheduleService := schedule.NewService(scheduleRepo, schedule.Config{
		DefaultSlotMinutes: cfg.DefaultSlotMinutes,
		BulkReplaceTimeout: cfg.BulkReplaceTimeout,
		BulkCreateTimeout:  cfg.BulkCreateTimeout,
	}, schedMetrics, logger.WithComponent("schedule"))

	routerCfg := &router.Config{
		Logger:             logger,
		ScheduleHandler:    handlers.NewScheduleHandler(scheduleService, logger.WithComponent("handlers")),
		SlotsHandler:       handlers.NewSlotsHandler(scheduleRepo, appointmentRepo, schedMetrics, logger.WithComponent("handlers")),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DoctorJWTSecret:    cfg.DoctorJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
