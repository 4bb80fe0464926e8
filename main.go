package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"proxystats/internal/collector"
	"proxystats/internal/config"
	"proxystats/internal/db"
	"proxystats/internal/http/handlers"
	appmw "proxystats/internal/http/middleware"
	"proxystats/internal/scheduler"
	"proxystats/internal/source"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", string(cfg.Backend)).Msg("failed to connect database")
	}
	defer func() {
		if err := db.Close(sqlDB); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.StartRetentionWorker(ctx, sqlDB, cfg.RetentionDays)

	reg := prometheus.DefaultRegisterer
	metrics := collector.NewMetrics(reg)
	handlers.InitPrometheusMetrics(reg)

	src := source.NewClient(source.Options{
		BaseURL:    cfg.SourceURL,
		APIKey:     cfg.SourceAPIKey,
		Timeout:    cfg.SourceTimeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Observer:   metrics.ObserveFetchAttempt,
	})
	coll := collector.New(collector.Options{
		Source:        src,
		Store:         db.NewStore(sqlDB),
		Location:      cfg.Location(),
		UserPageLimit: cfg.UserPageLimit,
		Parallel:      cfg.DailyParallel,
		Metrics:       metrics,
	})

	dispatcher := scheduler.NewDispatcher(coll, cfg.JobTimeout, reg)
	sched, err := scheduler.New(dispatcher, cfg.Location(), map[scheduler.Job]string{
		scheduler.JobDaily:   cfg.DailySchedule,
		scheduler.JobVehicle: cfg.VehicleSchedule,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure scheduler")
	}
	sched.Start()

	r := router.New()
	r.SaveMatchedRoutePath = true

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.MetricsHandler(prometheus.DefaultGatherer))

	r.POST("/api/cron/trigger", appmw.BearerSecret(cfg.TriggerSecret)(handlers.TriggerHandler(dispatcher)))

	loc := cfg.Location()
	r.GET("/api/stats/users/trend", handlers.UserTrend(sqlDB, loc))
	r.GET("/api/stats/users/ranking", handlers.UserRanking(sqlDB))
	r.GET("/api/stats/vehicles/trend", handlers.VehicleTrend(sqlDB, loc))
	r.GET("/api/stats/vehicles/distribution", handlers.VehicleDistribution(sqlDB))
	r.GET("/api/stats/vehicles/activity", handlers.VehicleActivity(sqlDB))
	r.GET("/api/stats/system/hourly", handlers.SystemHourly(sqlDB, loc))
	r.GET("/api/stats/logs", handlers.CollectionLogs(sqlDB))

	server := &fasthttp.Server{
		Handler: handlers.RequestLogger(r.Handler),
		Name:    "proxystats",
		// A manual daily trigger runs synchronously.
		WriteTimeout: cfg.JobTimeout + 30*time.Second,
		ReadTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("backend", string(cfg.Backend)).Msg("proxystats listening")
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	sched.Stop(shutdownCtx)
}
