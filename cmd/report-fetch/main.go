package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cxops/incontact-adapter/internal/incontact"
	internalsecrets "github.com/cxops/incontact-adapter/internal/secrets"
	"github.com/cxops/incontact-adapter/pkg/config"
	"github.com/cxops/incontact-adapter/pkg/logger"
	"github.com/cxops/incontact-adapter/pkg/secrets"
)

// report-fetch runs one report fetch synchronously and exits. It needs no
// NATS, Redis or Postgres: credentials come from the configured secrets
// backend and the file lands on the local disk.
func main() {
	var (
		clientID     = flag.String("client", internalsecrets.DefaultProfile, "Client profile to fetch for")
		reportID     = flag.String("report", "", "Report definition ID (default: profile setting)")
		outputPath   = flag.String("out", "", "Output file path (default: profile setting)")
		timeout      = flag.Duration("timeout", 0, "Overall deadline for the fetch (0 = none)")
		pollInterval = flag.Duration("poll-interval", 0, "Wait between job status checks (0 = configured default)")
		maxChecks    = flag.Int("max-checks", 0, "Status check budget (0 = configured default)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init("report-fetch", cfg.Env, cfg.LogLevel)
	logg := logger.S()

	if *pollInterval > 0 {
		cfg.PollInterval = *pollInterval
	}
	if *maxChecks > 0 {
		cfg.MaxStatusChecks = *maxChecks
	}

	var resolver incontact.ConfigResolver
	switch cfg.SecretsBackend {
	case "aws":
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		configCache := secrets.NewCache[incontact.InContactClientConfig](cfg.CacheTTL)
		resolver = internalsecrets.NewInContactResolver(logg.Desugar(), cfg.Env, awsProvider, configCache)
	default:
		resolver = internalsecrets.NewEnvResolver(cfg)
	}

	sessions := incontact.NewSessionManager(logg.Desugar(), nil)
	client := incontact.NewClient(logg.Desugar(), nil, sessions, cfg.HTTPRetryMax)
	poller := incontact.NewPoller(logg.Desugar(), client, cfg.PollInterval, cfg.MaxStatusChecks)
	svc := incontact.NewService(ctx, cfg, logg.Desugar(), client, poller, resolver, nil, nil, nil)

	fetchCtx := ctx
	if *timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	run, err := svc.FetchReport(fetchCtx, incontact.FetchRequest{
		ClientID:   *clientID,
		ReportID:   *reportID,
		OutputPath: *outputPath,
	})
	if err != nil {
		logg.Fatalw("report fetch failed", "client", *clientID, "error", err)
	}

	logg.Infow("report fetch complete",
		"client", run.ClientID,
		"report_id", run.ReportID,
		"job_id", run.JobID,
		"checks", run.Checks,
		"elapsed", time.Since(start))
	fmt.Printf("wrote %s (%d bytes)\n", run.OutputPath, run.Bytes)
}
