package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/api"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/bus"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/cache"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/config"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/forecast"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/gateway"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/grid"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/pricing"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/scheduler"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	repo := storage.NewRepository(store)

	// The cache is an optimization, not a dependency: start without it if
	// Redis is unreachable.
	var priceCache pricing.PriceCache
	var healthCache grid.ReportCache
	var apiCache api.ResultCache
	if hot, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, running without result cache", slog.String("error", err.Error()))
	} else {
		defer hot.Close()
		priceCache = hot
		healthCache = hot
		apiCache = hot
	}

	mqttClient, err := bus.NewClient(cfg.MQTT, logger)
	if err != nil {
		logger.Error("failed to connect to mqtt broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer mqttClient.Close()

	gw := gateway.New(mqttClient, repo, cfg.MQTT.Namespace, logger)
	if err := gw.Start(); err != nil {
		logger.Error("gateway subscriptions failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	forecasts := forecast.NewStoreProvider(repo)
	engine := pricing.NewEngine(repo, forecasts, gw, priceCache, cfg.Pricing, logger)
	monitor := grid.NewMonitor(repo, gw, healthCache, cfg.Grid, logger)

	sched := scheduler.New(logger)
	registerJobs(sched, engine, monitor, repo, cfg, logger)
	sched.Start()
	defer sched.Stop()

	handler := &api.Handler{
		Scheduler: sched,
		Prices:    engine,
		Health:    repo,
		Cache:     apiCache,
		Gateway:   gw,
		Logger:    logger,
	}
	server := api.NewServer(cfg.AdminPort, handler.Routes())
	go func() {
		logger.Info("admin server listening", slog.String("port", cfg.AdminPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", slog.String("error", err.Error()))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin server shutdown error", slog.String("error", err.Error()))
	}
}

func registerJobs(sched *scheduler.Scheduler, engine *pricing.Engine, monitor *grid.Monitor, repo *storage.Repository, cfg config.Config, logger *slog.Logger) {
	mustRegister(sched, logger, "pricing_optimization", scheduler.Every(15*time.Minute), engine.Optimize)

	mustRegister(sched, logger, "grid_health_check", scheduler.Every(5*time.Minute), func(ctx context.Context) error {
		_, err := monitor.CheckHealth(ctx)
		return err
	})

	mustRegister(sched, logger, "data_cleanup", scheduler.WeeklyAt(time.Sunday, 3, 0), func(ctx context.Context) error {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)
		deleted, err := repo.PruneBefore(ctx, cutoff)
		if deleted > 0 {
			logger.Info("pruned old records", slog.Int64("deleted", deleted))
		}
		return err
	})

	// Runs daily but only does work on the first of the month; the guard
	// lives in the job body, not the cadence.
	mustRegister(sched, logger, "monthly_pricing_compaction", scheduler.DailyAt(1, 0), func(ctx context.Context) error {
		if time.Now().UTC().Day() != 1 {
			return nil
		}
		cutoff := time.Now().UTC().AddDate(0, -3, 0)
		deleted, err := repo.PrunePricingBefore(ctx, cutoff)
		if deleted > 0 {
			logger.Info("monthly compaction complete", slog.Int64("deleted", deleted))
		}
		return err
	})
}

func mustRegister(sched *scheduler.Scheduler, logger *slog.Logger, name string, cadence scheduler.Cadence, action scheduler.Action) {
	if err := sched.Register(name, cadence, action); err != nil {
		logger.Error("job registration failed", slog.String("job", name), slog.String("error", err.Error()))
		os.Exit(1)
	}
}
