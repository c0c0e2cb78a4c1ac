package legacy

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/pkg/model"
)

// ReportSyncWriter writes fetched report files into the legacy
// reporting.t_report_file table so downstream warehouse jobs keep working.
type ReportSyncWriter struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	source string
}

// NewReportSyncWriter constructs a writer to update the legacy reporting.t_report_file table.
// source identifies the adapter writing the record (e.g. "incontact-adapter").
func NewReportSyncWriter(db *pgxpool.Pool, logger *zap.Logger, source string) *ReportSyncWriter {
	return &ReportSyncWriter{
		db:     db,
		logger: logger,
		source: source,
	}
}

// SyncRunUpsert inserts or updates the legacy report file record for a
// terminal run in reporting.t_report_file.
func (w *ReportSyncWriter) SyncRunUpsert(ctx context.Context, run *model.ReportRun) error {
	if run == nil {
		return nil
	}

	const query = `
		INSERT INTO reporting.t_report_file (
			s_id_run,
			s_id_client,
			s_id_report,
			s_id_job,
			s_file_name,
			s_path,
			n_bytes,
			s_status,
			s_source,
			s_source_type,
			dt_fetched
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (s_id_run)
		DO UPDATE SET
			s_id_job = EXCLUDED.s_id_job,
			s_file_name = EXCLUDED.s_file_name,
			s_path = EXCLUDED.s_path,
			n_bytes = EXCLUDED.n_bytes,
			s_status = EXCLUDED.s_status,
			s_source = EXCLUDED.s_source,
			s_source_type = EXCLUDED.s_source_type,
			dt_fetched = EXCLUDED.dt_fetched;
	`

	_, err := w.db.Exec(ctx, query,
		run.ID,             // s_id_run
		run.ClientID,       // s_id_client
		run.ReportID,       // s_id_report
		run.JobID,          // s_id_job
		run.FileName,       // s_file_name
		run.OutputPath,     // s_path
		run.Bytes,          // n_bytes
		string(run.Status), // s_status
		w.source,           // s_source
		"automated",        // s_source_type
		run.CompletedAt,    // dt_fetched
	)
	if err != nil {
		w.logger.Error("legacy.report_sync_failed",
			zap.String("run_id", run.ID),
			zap.String("client_id", run.ClientID),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("legacy.report_sync_upsert",
		zap.String("run_id", run.ID),
		zap.String("report_id", run.ReportID),
		zap.String("status", string(run.Status)),
		zap.String("client_id", run.ClientID),
		zap.String("file_name", run.FileName),
	)

	return nil
}
