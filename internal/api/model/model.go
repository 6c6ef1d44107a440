package model

import (
	"database/sql"
	"time"
)

// Outcome is a row of processing_outcomes
type Outcome struct {
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
