package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/cxops/incontact-adapter/internal/api"
	"github.com/cxops/incontact-adapter/internal/handler"
	"github.com/cxops/incontact-adapter/internal/incontact"
	"github.com/cxops/incontact-adapter/internal/jobs"
	"github.com/cxops/incontact-adapter/internal/legacy"
	"github.com/cxops/incontact-adapter/internal/publisher"
	"github.com/cxops/incontact-adapter/internal/rate"
	"github.com/cxops/incontact-adapter/internal/schedule"
	internalsecrets "github.com/cxops/incontact-adapter/internal/secrets"
	"github.com/cxops/incontact-adapter/internal/store"
	"github.com/cxops/incontact-adapter/pkg/config"
	"github.com/cxops/incontact-adapter/pkg/logger"
	"github.com/cxops/incontact-adapter/pkg/secrets"
	"github.com/cxops/incontact-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	logg := logger.S()
	logg.Info("starting [incontact-adapter]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Per-client config resolver ---
	var resolver incontact.ConfigResolver
	stopCleaner := make(chan struct{})

	switch cfg.SecretsBackend {
	case "aws":
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		configCache := secrets.NewCache[incontact.InContactClientConfig](cfg.CacheTTL)
		go configCache.StartCleaner(cfg.CleanupFreq, stopCleaner)
		resolver = internalsecrets.NewInContactResolver(logg.Desugar(), cfg.Env, awsProvider, configCache)
	default:
		resolver = internalsecrets.NewEnvResolver(cfg)
	}

	// --- Discover configured clients ---
	clients, err := resolver.DiscoverClients(ctx)
	if err != nil {
		logg.Warnw("failed to discover clients", "error", err)
	} else {
		logg.Infow("discovered InContact clients", "count", len(clients), "clients", clients)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.EventsSubject, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 10,
		Burst:             20,
		Cooldown:          1 * time.Second,
	})

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, cfg.RunCacheTTL, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}
	hybrid := st.(*store.HybridStore)

	// --- Legacy report sync writer ---
	var syncWriter *legacy.ReportSyncWriter
	if hybrid.PG != nil {
		syncWriter = legacy.NewReportSyncWriter(hybrid.PG, logger.L(), cfg.ServiceName)
	}

	// --- InContact session manager and HTTP client ---
	sessions := incontact.NewSessionManager(logg.Desugar(), nil)
	client := incontact.NewClient(logg.Desugar(), rateMgr, sessions, cfg.HTTPRetryMax)

	// --- Status poller ---
	poller := incontact.NewPoller(logg.Desugar(), client, cfg.PollInterval, cfg.MaxStatusChecks)

	// --- Report service ---
	svc := incontact.NewService(ctx, cfg, logg.Desugar(), client, poller, resolver, pub, st, syncWriter)

	// --- NATS command handler ---
	cmdHandler := handler.NewHandler(ctx, logg.Desugar(), nc, svc, st, cfg.CommandSubject)
	if err := cmdHandler.Start(); err != nil {
		logg.Fatalw("failed to start command handler", "error", err)
	}

	// --- Cron schedules ---
	entries, err := schedule.ParseSchedules(cfg.FetchSchedules)
	if err != nil {
		logg.Fatalw("invalid FETCH_SCHEDULES", "error", err)
	}
	var sched *schedule.CronScheduler
	if len(entries) > 0 {
		sched = schedule.NewCronScheduler(logg.Desugar(), svc, entries)
		if err := sched.Start(); err != nil {
			logg.Fatalw("failed to start fetch scheduler", "error", err)
		}
	}

	// --- Run history retention sweeper ---
	var sweepDB jobs.DBExecutor
	if hybrid.PG != nil {
		sweepDB = hybrid.PG
	}
	sweeper := jobs.NewRetentionSweeper(logg.Desugar(), sweepDB, pub, cfg.RetentionInterval, cfg.RetentionMaxAge)
	go sweeper.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	clientValidator := api.NewResolverValidator(resolver)
	reportHandler := api.NewReportHandler(logg.Desugar(), svc, st, clientValidator)

	api.RegisterRoutes(app, nc, st, reportHandler)

	// Start HTTP server
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[incontact-adapter] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"secrets_backend", cfg.SecretsBackend,
		"poll_interval", cfg.PollInterval,
		"max_status_checks", cfg.MaxStatusChecks,
		"schedules", len(entries),
		"discovered_clients", len(clients))

	<-ctx.Done()
	logg.Info("shutting down [incontact-adapter]...")

	close(stopCleaner)
	if sched != nil {
		sched.Stop()
	}
	sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
