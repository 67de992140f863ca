package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/n0rdy/approvals/api"
	"github.com/n0rdy/approvals/audit"
	"github.com/n0rdy/approvals/billing"
	"github.com/n0rdy/approvals/classifier"
	"github.com/n0rdy/approvals/common"
	"github.com/n0rdy/approvals/configs"
	"github.com/n0rdy/approvals/db"
	jobsmetrics "github.com/n0rdy/approvals/jobs/metrics"
	"github.com/n0rdy/approvals/jobs/sweep"
	"github.com/n0rdy/approvals/metrics"
	"github.com/n0rdy/approvals/queue"
	"github.com/n0rdy/approvals/services"
	"github.com/n0rdy/approvals/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	appConfigs, err := configs.LoadAppConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configs")
	}
	setupLogger(appConfigs)

	dbPath, err := utils.ResolveDBPath(appConfigs.DbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve database path")
	}
	if err := db.RunMigrations(dbPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo, err := db.NewSQLiteRepo(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SQLite repository")
	}
	defer repo.Close()

	metricsService := metrics.NewMetricsService(appConfigs.MetricsEnabled)
	approvalQueue := queue.NewApprovalQueue(appConfigs.QueueConfig.Capacity)

	classifierClient := classifier.NewClient(classifier.Config{
		Url:                appConfigs.ClassifierConfig.Url,
		ApiKey:             appConfigs.ClassifierConfig.ApiKey,
		Model:              appConfigs.ClassifierConfig.Model,
		Timeout:            time.Duration(appConfigs.ClassifierConfig.TimeoutMs) * time.Millisecond,
		BreakerMaxFailures: appConfigs.ClassifierConfig.BreakerMaxFailures,
		BreakerOpenTimeout: time.Duration(appConfigs.ClassifierConfig.BreakerOpenMs) * time.Millisecond,
	})

	sinks := []audit.Sink{audit.NewCSVSink(appConfigs.AuditConfig.CsvPath)}
	if appConfigs.AuditConfig.WebhookUrl != "" {
		sinks = append(sinks, audit.NewWebhookSink(appConfigs.AuditConfig.WebhookUrl, 10*time.Second))
	}
	auditSink := audit.NewMultiSink(sinks...)

	publisher := billing.NewPublisher(appConfigs.BillingConfig.AmqpUrl, appConfigs.BillingConfig.QueueName)

	recorder := services.NewOutcomeRecorder(repo, auditSink, publisher, approvalQueue, metricsService, services.RecorderConfig{
		MaxRetries:   appConfigs.QueueConfig.MaxRetries,
		PostDuration: time.Duration(appConfigs.PostDurationMs) * time.Millisecond,
	})
	workerPool := services.NewWorkerPool(approvalQueue, classifierClient, recorder, metricsService, services.PoolConfig{
		Steady:          appConfigs.WorkersConfig.Steady,
		Max:             appConfigs.WorkersConfig.Max,
		BurstThreshold:  appConfigs.WorkersConfig.BurstThreshold,
		KeepAlive:       time.Duration(appConfigs.WorkersConfig.KeepAliveMs) * time.Millisecond,
		ShutdownTimeout: appConfigs.WorkersConfig.ShutdownTimeout,
	})
	gateway := services.NewEnqueueGateway(repo, approvalQueue, metricsService)
	queueMonitor := services.NewQueueMonitor(approvalQueue)
	monitoringService := services.NewMonitoringService(repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerPool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker pool")
	}

	if appConfigs.JobsIntervals.PendingSweepMs > 0 {
		pendingSweepJob := sweep.NewPendingSweepJob(gateway, appConfigs.JobsIntervals.PendingSweepMs)
		defer pendingSweepJob.Close()
	}
	queueDepthMetricsJob := jobsmetrics.NewQueueDepthMetricsJob(metricsService, approvalQueue, workerPool, appConfigs.JobsIntervals.QueueDepthMetricsMs)
	defer queueDepthMetricsJob.Close()

	router := api.NewRouter(gateway, workerPool, queueMonitor, monitoringService, api.RouterConfig{
		AuthSecret:         appConfigs.AuthSecret,
		MetricsEnabled:     appConfigs.MetricsEnabled,
		RateLimitPerMinute: appConfigs.ServerConfig.RateLimitPerMinute,
	})

	server := &http.Server{
		Addr:              appConfigs.ListenAddr,
		Handler:           http.TimeoutHandler(router.NewRouter(), appConfigs.ServerConfig.Timeouts.Handle, "timeout"),
		WriteTimeout:      appConfigs.ServerConfig.Timeouts.Write,
		ReadTimeout:       appConfigs.ServerConfig.Timeouts.Read,
		ReadHeaderTimeout: appConfigs.ServerConfig.Timeouts.ReadHeader,
		IdleTimeout:       appConfigs.ServerConfig.Timeouts.Idle,
	}

	go func() {
		log.Info().Str("addr", appConfigs.ListenAddr).Str("db_path", dbPath).Msg("server started")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
		stop()
	}()

	<-ctx.Done()
	log.Info().Msg("server shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfigs.WorkersConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to shut down server gracefully")
		if err := server.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close server")
		}
	}

	// queued messages are not persisted, the pending sweep picks their listings up after a restart
	approvalQueue.Close()
	if err := workerPool.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop worker pool")
	}
	log.Info().Int("dropped", approvalQueue.Size()).Msg("server shutdown")
}

func setupLogger(appConfigs *configs.AppConfigs) {
	level, err := zerolog.ParseLevel(appConfigs.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if appConfigs.Env == common.LocalEnv {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}
