package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/finlink/reports-api/api/swagger"
	"github.com/finlink/reports-api/internal/dto"
	"github.com/finlink/reports-api/internal/handler"
	"github.com/finlink/reports-api/internal/repository"
	"github.com/finlink/reports-api/internal/service"
	"github.com/finlink/reports-api/pkg/cache"
	"github.com/finlink/reports-api/pkg/config"
	"github.com/finlink/reports-api/pkg/database"
	"github.com/finlink/reports-api/pkg/logger"
	"github.com/finlink/reports-api/pkg/mailer"
	"github.com/finlink/reports-api/pkg/storage"
)

// @title FinLink Reports API
// @version 1.0
// @description Report aggregation and scheduled report delivery for finance applications.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, report caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		log.Fatal("export storage init failed", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	applicationRepo := repository.NewApplicationRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	runRepo := repository.NewRunRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}

	// Services.
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, cfg.Reporting.CacheEnabled, cfg.Reporting.CacheTTL, log)
	reportSvc := service.NewReportService(applicationRepo, cacheSvc, metrics, log)
	scheduleSvc := service.NewScheduleService(scheduleRepo, runRepo, log)
	exportSvc := service.NewExportService(exportJobRepo, reportSvc, store, signer, metrics, log,
		cfg.Exports.WorkerConcurrency, cfg.Exports.WorkerRetries)
	exportSvc.Start(ctx)
	defer exportSvc.Stop()
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx, cfg.Exports.CleanupInterval, cfg.Exports.SignedURLTTL)

	var mail service.MailSender
	if cfg.Email.Enabled {
		m, err := mailer.New(ctx, cfg.Email, log)
		if err != nil {
			log.Warn("mailer init failed, scheduled delivery disabled", zap.Error(err))
		} else {
			mail = m
		}
	}
	schedulerSvc := service.NewSchedulerService(scheduleRepo, runRepo, reportSvc, exportSvc, mail,
		metrics, log, cfg.Scheduler.Concurrency, cfg.Email.SendCtxTO)

	// HTTP surface.
	dto.RegisterValidations()
	router := handler.NewRouter(cfg, log, metrics, handler.Handlers{
		Health:    handler.NewHealthHandler(db, redisClient),
		Reports:   handler.NewReportHandler(reportSvc, exportSvc, log),
		Schedules: handler.NewScheduleHandler(scheduleSvc, log),
		Scheduler: handler.NewSchedulerHandler(schedulerSvc, log),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
