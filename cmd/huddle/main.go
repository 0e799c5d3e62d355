package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/victorivanov/huddle/internal/api"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/config"
	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/gateway"
	"github.com/victorivanov/huddle/internal/metrics"
	redisclient "github.com/victorivanov/huddle/internal/redis"
	"github.com/victorivanov/huddle/internal/scheduler"
	"github.com/victorivanov/huddle/internal/service"
	"github.com/victorivanov/huddle/internal/snowflake"
	"github.com/victorivanov/huddle/internal/storage"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("postgres", err)
	}
	defer pool.Close()

	rdb, err := redisclient.NewClient(cfg.RedisURL)
	if err != nil {
		fatal("redis", err)
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		// Rate limiting fails open, so an unreachable Redis is not fatal.
		slog.Warn("redis unreachable, rate limiting disabled until it recovers", "error", err)
	}

	sf, err := snowflake.NewGenerator(cfg.WorkerID, cfg.ProcessID)
	if err != nil {
		fatal("snowflake", err)
	}
	tokenSvc := auth.NewTokenService(cfg.JWTSecret)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sched := scheduler.New(scheduler.SystemClock{}, m)

	// --- Repositories ---

	directory := database.NewDirectoryRepository(pool)
	messages := database.NewMessageStore()
	feeds := database.NewNotificationStore()

	// --- Gateway ---

	gwManager := gateway.NewManager(tokenSvc, m)
	gwManager.SetAllowedOrigins(cfg.GatewayOrigins)

	// --- Services ---

	notifications := service.NewNotificationService(feeds, directory, gwManager, m)
	messageSvc := service.NewMessageService(messages, directory, notifications, sf, sched, gwManager, m)
	standups := service.NewStandupService(directory, messageSvc, sched, gwManager, m)
	reactions := service.NewReactionService(messageSvc, notifications)
	pins := service.NewPinService(messageSvc)

	if cfg.MinIOEndpoint != "" {
		archive, err := storage.NewMinIOClient(ctx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOSecure)
		if err != nil {
			fatal("minio", err)
		}
		messageSvc.SetArchiver(archive)
	}

	deps := &api.Dependencies{
		Messages:           api.NewMessageHandler(messageSvc),
		Standups:           api.NewStandupHandler(standups),
		Reactions:          api.NewReactionHandler(reactions, pins),
		Notifications:      api.NewNotificationHandler(notifications),
		Gateway:            gwManager,
		TokenService:       tokenSvc,
		Redis:              rdb,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	// --- Echo ---

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.SetupRouter(e, deps)

	// --- Start ---

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("huddle starting", "addr", cfg.ServerAddr)
		if err := e.Start(cfg.ServerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server", err)
		}
	}()

	<-sigCtx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		slog.Error("scheduler shutdown", "error", err)
	}
}

func fatal(what string, err error) {
	slog.Error(what, "error", err)
	os.Exit(1)
}
