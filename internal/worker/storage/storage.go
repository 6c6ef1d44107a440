package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// Schema creates the outcome table used by the store and the history API
const Schema = `
	CREATE TABLE IF NOT EXISTS processing_outcomes (
		job_id       UUID PRIMARY KEY,
		path         TEXT        NOT NULL,
		status       TEXT        NOT NULL,
		output_path  TEXT,
		summary      TEXT,
		reason       TEXT,
		kind         TEXT,
		attempts     INTEGER     NOT NULL,
		retries      INTEGER     NOT NULL,
		input_size   BIGINT      NOT NULL DEFAULT 0,
		output_size  BIGINT      NOT NULL DEFAULT 0,
		duration_ms  BIGINT      NOT NULL DEFAULT 0,
		worker_id    TEXT        NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS processing_outcomes_finished_idx
		ON processing_outcomes (finished_at DESC, job_id DESC);
`

// outcomeRow is the persisted form of domain.Outcome
type outcomeRow struct {
	JobID      string         `db:"job_id"`
	Path       string         `db:"path"`
	Status     string         `db:"status"`
	OutputPath sql.NullString `db:"output_path"`
	Summary    sql.NullString `db:"summary"`
	Reason     sql.NullString `db:"reason"`
	Kind       sql.NullString `db:"kind"`
	Attempts   int            `db:"attempts"`
	Retries    int            `db:"retries"`
	InputSize  int64          `db:"input_size"`
	OutputSize int64          `db:"output_size"`
	DurationMS int64          `db:"duration_ms"`
	WorkerID   string         `db:"worker_id"`
	FinishedAt time.Time      `db:"finished_at"`
}

// Storage persists outcomes to PostgreSQL
type Storage struct {
	db       *sqlx.DB
	logger   *slog.Logger
	workerID string
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger, workerID string) *Storage {
	return &Storage{
		db:       db,
		logger:   logger,
		workerID: workerID,
	}
}

// EnsureSchema creates the outcome table if it does not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create outcome schema: %w", err)
	}
	return nil
}

// Report inserts the outcome. A job id is written at most once.
func (s *Storage) Report(ctx context.Context, o domain.Outcome) error {
	query := `
		INSERT INTO processing_outcomes (
			job_id, path, status, output_path, summary, reason, kind,
			attempts, retries, input_size, output_size, duration_ms,
			worker_id, finished_at
		) VALUES (
			:job_id, :path, :status, :output_path, :summary, :reason, :kind,
			:attempts, :retries, :input_size, :output_size, :duration_ms,
			:worker_id, :finished_at
		)
		ON CONFLICT (job_id) DO NOTHING
	`

	row := outcomeRow{
		JobID:      o.JobID,
		Path:       o.Path,
		Status:     o.Status,
		OutputPath: nullString(o.OutputPath),
		Summary:    nullString(o.Summary),
		Reason:     nullString(o.Reason),
		Kind:       nullString(o.Kind),
		Attempts:   o.Attempts,
		Retries:    o.Retries,
		InputSize:  int64(o.InputSize),
		OutputSize: int64(o.OutputSize),
		DurationMS: o.Duration.Milliseconds(),
		WorkerID:   s.workerID,
		FinishedAt: o.FinishedAt,
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to store outcome: %w", err)
	}

	s.logger.Debug("Outcome stored",
		slog.String("job_id", o.JobID),
		slog.String("status", o.Status),
	)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
