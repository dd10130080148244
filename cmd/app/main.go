package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamgate/internal/config"
	pg "streamgate/internal/infra/db/postgres"
	"streamgate/internal/infra/logging"
	"streamgate/internal/infra/metrics"
	red "streamgate/internal/infra/redis"
	"streamgate/internal/infra/sched"
	"streamgate/internal/infra/web"
	"streamgate/internal/infra/worker"
	"streamgate/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	if cfg.UsingDefaultAdminToken() {
		logger.Warn().Msg("ADMIN_TOKEN not set; using the built-in development token. Do not run like this in production")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	if err := pg.RunMigrations(cfg.Database.URL, cfg.Server.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	statsCache := red.NewStatsCache(redisClient, cfg.Redis.StatsTTL)

	// ---- Repositories ----
	codeRepo := pg.NewAccessCodeRepo(pool)
	logRepo := pg.NewUsageLogRepo(pool)
	reportRepo := pg.NewReportJobRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Background pool for off-path log appends ----
	logPool := worker.NewPool(cfg.Worker.PoolSize, logger)
	logPool.Start(ctx)
	defer logPool.Stop()

	// ---- Use cases ----
	codeUC := usecase.NewCodeUseCase(codeRepo, logRepo, txm, logPool, logger)
	logUC := usecase.NewLogUseCase(logRepo, statsCache, logger)
	reportUC := usecase.NewReportUseCase(reportRepo, logUC, logger)

	// ---- Scheduled workers ----
	expiry := sched.NewExpiryWorker(cfg.Worker.ExpirySweepInterval, cfg.Worker.ExpirySweepBatch, codeUC, logger)
	go func() { _ = expiry.Run(ctx) }()
	reports := sched.NewReportWorker(cfg.Worker.ReportTickInterval, reportUC, logger)
	go func() { _ = reports.Run(ctx) }()

	// ---- HTTP ----
	srv := web.NewServer(codeUC, logUC, reportUC, rateLimiter, cfg.RateLimit.ValidatePerMinute, cfg.Server.AdminToken, cfg.Runtime.Dev, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
}
