package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/metrics"
	"github.com/cxops/incontact-adapter/internal/publisher"
)

// retentionQuery removes run history rows whose run started before the cutoff.
const retentionQuery = `DELETE FROM incontact.t_report_run WHERE d_started < $1`

// retentionSubject is the event emitted after each sweep that deleted rows.
const retentionSubject = "evt.report.retention.v1.INCONTACT"

// DBExecutor defines the minimal subset of pgxpool.Pool needed for execution.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RetentionSweeper periodically deletes report run history older than the
// retention window and emits a NATS event describing each sweep. The venue
// deletes its own report files server-side; this keeps the adapter's run
// ledger from growing without bound.
type RetentionSweeper struct {
	logger    *zap.Logger
	db        DBExecutor
	publisher *publisher.Publisher
	interval  time.Duration
	maxAge    time.Duration
	stopCh    chan struct{}
}

// NewRetentionSweeper constructs the background sweep job. db may be nil when
// the durable store is disabled; the sweeper then idles.
func NewRetentionSweeper(logger *zap.Logger, db DBExecutor, pub *publisher.Publisher, interval, maxAge time.Duration) *RetentionSweeper {
	return &RetentionSweeper{
		logger:    logger,
		db:        db,
		publisher: pub,
		interval:  interval,
		maxAge:    maxAge,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is canceled.
func (r *RetentionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("retention_sweeper.started",
		zap.Duration("interval", r.interval),
		zap.Duration("max_age", r.maxAge))

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("retention_sweeper.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("retention_sweeper.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the sweeper.
func (r *RetentionSweeper) Stop() {
	close(r.stopCh)
}

// runOnce executes one sweep cycle.
func (r *RetentionSweeper) runOnce(ctx context.Context) {
	if r.db == nil {
		r.logger.Debug("retention_sweeper.skipped (no durable store)")
		return
	}

	start := time.Now()
	cutoff := start.UTC().Add(-r.maxAge)

	tag, err := r.db.Exec(ctx, retentionQuery, cutoff)
	if err != nil {
		r.logger.Error("retention_sweeper.sweep_failed", zap.Error(err))
		metrics.IncError("retention_sweeper", "sweep")
		return
	}

	deleted := tag.RowsAffected()
	metrics.RetentionRunsDeleted.Add(float64(deleted))
	if deleted == 0 {
		r.logger.Debug("retention_sweeper.nothing_to_delete")
		return
	}

	if r.publisher != nil {
		event := map[string]any{
			"event":        retentionSubject,
			"timestamp":    time.Now().UTC(),
			"cutoff":       cutoff,
			"runs_deleted": deleted,
			"duration_ms":  time.Since(start).Milliseconds(),
		}
		if err := r.publisher.Publish(ctx, retentionSubject, event); err != nil {
			r.logger.Warn("retention_sweeper.nats_publish_failed", zap.Error(err))
		}
	}

	r.logger.Info("retention_sweeper.success",
		zap.Int64("runs_deleted", deleted),
		zap.Time("cutoff", cutoff),
		zap.Duration("duration", time.Since(start)))
}
