package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/file-processor/internal/api/domain"
	"github.com/cuongbtq/file-processor/internal/api/model"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

type OutcomeFilter struct {
	Status   string
	PageSize int
	Cursor   *OutcomeCursor
}

type OutcomeCursor struct {
	FinishedAt time.Time
	JobID      string
}

const outcomeColumns = `
	job_id, path, status, output_path, summary, reason, kind,
	attempts, retries, input_size, output_size, duration_ms,
	worker_id, finished_at
`

func (s *Storage) GetOutcome(ctx context.Context, jobID string) (*model.Outcome, error) {
	var outcome model.Outcome
	query := `SELECT ` + outcomeColumns + ` FROM processing_outcomes WHERE job_id = $1`

	err := s.db.GetContext(ctx, &outcome, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOutcomeNotFound
		}
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}

	return &outcome, nil
}

// ListOutcomes returns up to PageSize+1 rows, newest first, so callers can
// tell whether another page exists
func (s *Storage) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM processing_outcomes WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (finished_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.FinishedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY finished_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var outcomes []model.Outcome
	err := s.db.SelectContext(ctx, &outcomes, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}

	return outcomes, nil
}
