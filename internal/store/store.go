package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/pkg/model"
)

// Store defines the contract for caching and persisting report run history.
type Store interface {
	SaveRun(ctx context.Context, run model.ReportRun) error
	GetRun(ctx context.Context, runID string) (*model.ReportRun, error)
	ListRunsByReport(ctx context.Context, reportID string, limit int) ([]model.ReportRun, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
	runTTL time.Duration
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed run history store.
// An empty pgURL disables the durable layer; runs then live only in Redis.
func NewHybrid(redisAddr string, redisDB int, redisPass, pgURL string, pgPoolConfig PGPoolConfig, runTTL time.Duration, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runTTL <= 0 {
		runTTL = 24 * time.Hour
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger, runTTL: runTTL}, nil
}

func runKey(runID string) string {
	return "run:" + runID
}

// SaveRun writes the run to the hot cache and upserts the durable row.
// A Redis failure is logged but does not block the durable write.
func (s *HybridStore) SaveRun(ctx context.Context, run model.ReportRun) error {
	if err := s.SetJSON(ctx, runKey(run.ID), run, s.runTTL); err != nil {
		s.logger.Warn("store.redis.run_cache_failed",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}

	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO incontact.t_report_run (
			s_id_run, s_id_client, s_id_report, s_id_job, s_status,
			s_output_path, s_file_name, n_bytes, n_checks, s_error,
			d_started, d_completed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (s_id_run)
		DO UPDATE SET
			s_id_job = EXCLUDED.s_id_job,
			s_status = EXCLUDED.s_status,
			s_file_name = EXCLUDED.s_file_name,
			n_bytes = EXCLUDED.n_bytes,
			n_checks = EXCLUDED.n_checks,
			s_error = EXCLUDED.s_error,
			d_completed = EXCLUDED.d_completed;
	`, run.ID, run.ClientID, run.ReportID, run.JobID, string(run.Status),
		run.OutputPath, run.FileName, run.Bytes, run.Checks, run.Error,
		run.StartedAt, run.CompletedAt)
	if err != nil {
		s.logger.Error("store.pg.run_upsert_failed",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
	return err
}

// GetRun returns a run by ID, Redis first with a Postgres fallback.
// A missing run yields (nil, nil).
func (s *HybridStore) GetRun(ctx context.Context, runID string) (*model.ReportRun, error) {
	var run model.ReportRun
	err := s.GetJSON(ctx, runKey(runID), &run)
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	if s.PG == nil {
		return nil, nil
	}
	row := s.PG.QueryRow(ctx, `
		SELECT s_id_run, s_id_client, s_id_report, s_id_job, s_status,
		       s_output_path, s_file_name, n_bytes, n_checks, s_error,
		       d_started, d_completed
		FROM incontact.t_report_run
		WHERE s_id_run = $1
		LIMIT 1;
	`, runID)

	var status string
	if err := row.Scan(&run.ID, &run.ClientID, &run.ReportID, &run.JobID, &status,
		&run.OutputPath, &run.FileName, &run.Bytes, &run.Checks, &run.Error,
		&run.StartedAt, &run.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetRun scan failed: %w", err)
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

// ListRunsByReport returns the most recent runs for a report definition.
func (s *HybridStore) ListRunsByReport(ctx context.Context, reportID string, limit int) ([]model.ReportRun, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.PG.Query(ctx, `
		SELECT s_id_run, s_id_client, s_id_report, s_id_job, s_status,
		       s_output_path, s_file_name, n_bytes, n_checks, s_error,
		       d_started, d_completed
		FROM incontact.t_report_run
		WHERE s_id_report = $1
		ORDER BY d_started DESC
		LIMIT $2;
	`, reportID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ReportRun
	for rows.Next() {
		var run model.ReportRun
		var status string
		if err := rows.Scan(&run.ID, &run.ClientID, &run.ReportID, &run.JobID, &status,
			&run.OutputPath, &run.FileName, &run.Bytes, &run.Checks, &run.Error,
			&run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		run.Status = model.RunStatus(status)
		results = append(results, run)
	}
	return results, rows.Err()
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
