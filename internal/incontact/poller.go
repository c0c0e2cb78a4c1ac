package incontact

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/metrics"
)

const (
	defaultPollInterval = 60 * time.Second
	defaultMaxChecks    = 10
)

// Clock abstracts time for the poller so waits are cancellable and tests run
// without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollOutcome says how a status wait ended.
type PollOutcome string

const (
	// PollReady means the job result announced a file URL.
	PollReady PollOutcome = "ready"
	// PollTimedOut means the check budget ran out with no file URL.
	PollTimedOut PollOutcome = "timed_out"
)

// PollResult reports the end state of a status wait.
type PollResult struct {
	Outcome PollOutcome
	FileURL string // set only when Outcome is PollReady
	Checks  int    // status checks actually performed
	Elapsed time.Duration
}

// Poller owns the cadence and budget of report job status checks. Transport
// belongs to the Client; the poller only decides when to ask again and when
// to stop asking.
type Poller struct {
	logger    *zap.Logger
	client    *Client
	interval  time.Duration
	maxChecks int
	clock     Clock
}

// NewPoller creates a poller. Non-positive interval or maxChecks fall back
// to the venue defaults (60s, 10 checks).
func NewPoller(logger *zap.Logger, client *Client, interval time.Duration, maxChecks int) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxChecks <= 0 {
		maxChecks = defaultMaxChecks
	}
	return &Poller{
		logger:    logger,
		client:    client,
		interval:  interval,
		maxChecks: maxChecks,
		clock:     realClock{},
	}
}

// WaitForFile polls the job status until a result file URL appears or the
// check budget is spent. The budget counts status checks, not sleeps: the
// poller never sleeps after its final check. Budget exhaustion is reported
// as a PollTimedOut outcome with a nil error; callers decide how severe a
// timed-out wait is. Any transport or HTTP error aborts the wait immediately.
func (p *Poller) WaitForFile(ctx context.Context, cfg *InContactClientConfig, jobID string) (*PollResult, error) {
	start := p.clock.Now()

	for check := 1; check <= p.maxChecks; check++ {
		status, err := p.client.GetJobResult(ctx, cfg, jobID)
		if err != nil {
			return nil, fmt.Errorf("status check %d/%d: %w", check, p.maxChecks, err)
		}
		metrics.ReportStatusChecks.Inc()

		if url := status.JobResult.ResultFileURL; url != "" {
			p.logger.Debug("incontact.poll.file_ready",
				zap.String("job_id", jobID),
				zap.Int("checks", check))
			return &PollResult{
				Outcome: PollReady,
				FileURL: url,
				Checks:  check,
				Elapsed: p.clock.Now().Sub(start),
			}, nil
		}

		p.logger.Debug("incontact.poll.not_ready",
			zap.String("job_id", jobID),
			zap.Int("check", check),
			zap.Int("max_checks", p.maxChecks))

		if check < p.maxChecks {
			if err := p.clock.Sleep(ctx, p.interval); err != nil {
				return nil, fmt.Errorf("wait between status checks: %w", err)
			}
		}
	}

	p.logger.Warn("incontact.poll.budget_exhausted",
		zap.String("job_id", jobID),
		zap.Int("checks", p.maxChecks))
	return &PollResult{
		Outcome: PollTimedOut,
		Checks:  p.maxChecks,
		Elapsed: p.clock.Now().Sub(start),
	}, nil
}
