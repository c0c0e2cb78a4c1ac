package incontact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/legacy"
	"github.com/cxops/incontact-adapter/internal/metrics"
	"github.com/cxops/incontact-adapter/internal/publisher"
	"github.com/cxops/incontact-adapter/internal/store"
	"github.com/cxops/incontact-adapter/pkg/config"
	"github.com/cxops/incontact-adapter/pkg/model"
)

// FetchRequest describes one report fetch. ReportID and OutputPath override
// the resolved client profile defaults when set. RunID pre-assigns the run
// record ID; StartFetch fills it so callers learn the ID at accept time.
type FetchRequest struct {
	ClientID   string
	ReportID   string
	OutputPath string
	RunID      string
}

// Service orchestrates the InContact report pipeline: authenticate, start a
// report job, poll until the venue materializes the file, then download,
// decode and write it locally. Run outcomes are persisted, synced to the
// legacy warehouse and published as events.
type Service struct {
	ctx            context.Context
	cfg            *config.Config
	logger         *zap.Logger
	client         *Client
	poller         *Poller
	configResolver ConfigResolver
	publisher      *publisher.Publisher
	store          store.Store
	syncWriter     *legacy.ReportSyncWriter
	mapper         *Mapper
}

// NewService constructs a fully wired InContact adapter service. Publisher,
// store and syncWriter may be nil; the pipeline then runs without eventing,
// run history or the legacy sync.
func NewService(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	client *Client,
	poller *Poller,
	resolver ConfigResolver,
	pub *publisher.Publisher,
	st store.Store,
	syncWriter *legacy.ReportSyncWriter,
) *Service {
	return &Service{
		ctx:            ctx,
		cfg:            cfg,
		logger:         logger,
		client:         client,
		poller:         poller,
		configResolver: resolver,
		publisher:      pub,
		store:          st,
		syncWriter:     syncWriter,
		mapper:         NewMapper(),
	}
}

// resolveConfig resolves the per-client InContact configuration.
func (s *Service) resolveConfig(ctx context.Context, clientID string) (*InContactClientConfig, error) {
	cfg, err := s.configResolver.Resolve(ctx, clientID)
	if err != nil {
		s.logger.Error("incontact.resolve_config_failed",
			zap.String("client", clientID),
			zap.Error(err))
		return nil, fmt.Errorf("resolve client config for %q: %w", clientID, err)
	}
	return cfg, nil
}

// FetchReport runs the full pipeline synchronously and returns the terminal
// run record. The four stages are strictly ordered: a failure in one stage
// stops the pipeline, no later stage runs, and no file is written.
func (s *Service) FetchReport(ctx context.Context, req FetchRequest) (*model.ReportRun, error) {
	s.logger.Info("incontact.report_fetch.start",
		zap.String("client", req.ClientID),
		zap.String("report_id", req.ReportID),
	)

	clientCfg, err := s.resolveConfig(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	reportID := req.ReportID
	if reportID == "" {
		reportID = clientCfg.ReportID
	}
	if reportID == "" {
		return nil, fmt.Errorf("no report id for client %q", req.ClientID)
	}

	outputPath := s.mapper.ResolveOutputPath(req.OutputPath, clientCfg.OutputPath, reportID)

	run := model.NewReportRun(req.ClientID, reportID, outputPath)
	if req.RunID != "" {
		run.ID = req.RunID
	}
	s.saveRun(ctx, run)

	s.logger.Debug("incontact.fetch_request", zap.String("json", pretty(req)))

	jobID, err := s.client.StartReportJob(ctx, clientCfg, reportID)
	if err != nil {
		return nil, s.failRun(ctx, run, clientCfg.BusinessUnit, "start_job", 0, err)
	}

	run = run.WithJob(jobID)
	s.saveRun(ctx, run)

	result, err := s.poller.WaitForFile(ctx, clientCfg, jobID)
	if err != nil {
		return nil, s.failRun(ctx, run, clientCfg.BusinessUnit, "poll", 0, err)
	}

	if result.Outcome == PollTimedOut {
		run = run.WithTimedOut(result.Checks)
		s.finishRun(ctx, run, clientCfg.BusinessUnit)
		s.logger.Error("incontact.report_fetch.timed_out",
			zap.String("client", req.ClientID),
			zap.String("job_id", jobID),
			zap.Int("checks", result.Checks))
		return nil, fmt.Errorf("report job %q not ready after %d status checks", jobID, result.Checks)
	}

	files, err := s.client.DownloadFile(ctx, clientCfg, result.FileURL)
	if err != nil {
		return nil, s.failRun(ctx, run, clientCfg.BusinessUnit, "download", result.Checks, err)
	}

	data, err := s.mapper.DecodeReportPayload(files)
	if err != nil {
		return nil, s.failRun(ctx, run, clientCfg.BusinessUnit, "decode", result.Checks, err)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		err = fmt.Errorf("write report file %q: %w", outputPath, err)
		return nil, s.failRun(ctx, run, clientCfg.BusinessUnit, "write", result.Checks, err)
	}

	run = run.WithCompleted(files.Files.FileName, int64(len(data)), result.Checks)
	s.finishRun(ctx, run, clientCfg.BusinessUnit)
	metrics.ReportBytesTotal.Add(float64(len(data)))

	s.logger.Info("incontact.report_fetch.complete",
		zap.String("client", req.ClientID),
		zap.String("report_id", reportID),
		zap.String("job_id", jobID),
		zap.String("path", outputPath),
		zap.Int("bytes", len(data)),
		zap.Int("checks", result.Checks),
		zap.Duration("elapsed", result.Elapsed),
	)

	return &run, nil
}

// StartFetch launches a fetch in the background and returns the run ID.
// It runs on the service context so the pipeline survives the caller's
// request lifetime.
func (s *Service) StartFetch(req FetchRequest) string {
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	s.logger.Info("incontact.fetch_accepted",
		zap.String("run_id", req.RunID),
		zap.String("client", req.ClientID),
		zap.String("report_id", req.ReportID))
	go func() {
		if _, err := s.FetchReport(s.ctx, req); err != nil {
			s.logger.Error("incontact.async_fetch_failed",
				zap.String("run_id", req.RunID),
				zap.String("client", req.ClientID),
				zap.Error(err))
		}
	}()
	return req.RunID
}

// failRun records a failed run, finishes it and returns the caller-facing error.
func (s *Service) failRun(ctx context.Context, run model.ReportRun, tenantID, stage string, checks int, cause error) error {
	run = run.WithFailed(cause.Error(), checks)
	s.finishRun(ctx, run, tenantID)
	s.logger.Error("incontact.report_fetch.failed",
		zap.String("client", run.ClientID),
		zap.String("report_id", run.ReportID),
		zap.String("stage", stage),
		zap.Error(cause))
	metrics.IncError("service", stage)
	return fmt.Errorf("report fetch for client %q: %w", run.ClientID, cause)
}

// finishRun persists a terminal run, syncs it to the legacy warehouse and
// publishes the lifecycle event.
func (s *Service) finishRun(ctx context.Context, run model.ReportRun, tenantID string) {
	s.saveRun(ctx, run)

	if s.syncWriter != nil && run.Status.Terminal() {
		if err := s.syncWriter.SyncRunUpsert(ctx, &run); err != nil {
			s.logger.Warn("incontact.report_sync_failed",
				zap.String("run_id", run.ID),
				zap.String("client", run.ClientID),
				zap.Error(err))
		}
	}

	metrics.IncReportRun(string(run.Status))
	if run.Status == model.RunStatusCompleted {
		completed := time.Now()
		if run.CompletedAt != nil {
			completed = *run.CompletedAt
		}
		metrics.SetLastFetch(run.ReportID, completed)
	}

	if s.publisher == nil {
		return
	}
	subject := s.mapper.RunEventType(run.Status)
	evt := s.mapper.RunEvent(run)
	evt.TenantID = tenantID
	if err := s.publisher.PublishReportRun(ctx, subject, evt); err != nil {
		s.logger.Warn("incontact.publish_failed",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// saveRun persists run state when a store is configured.
func (s *Service) saveRun(ctx context.Context, run model.ReportRun) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.logger.Warn("incontact.run_save_failed",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// pretty formats a value as indented JSON for debug logging.
func pretty(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
