package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStorage(sqlx.NewDb(db, "postgres"), logger, "worker-1"), mock
}

func TestStorage_EnsureSchema(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS processing_outcomes")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ReportSuccess(t *testing.T) {
	s, mock := newMockStorage(t)

	job := domain.NewReadyJob("/in/a.txt")
	o := domain.NewSuccess(job, "/out/a.txt.processed.txt", "Processed content for a.txt: Data size 3")
	o.Attempts = 2
	o.Retries = 1
	o.InputSize = 3
	o.OutputSize = 120
	o.Duration = 250 * time.Millisecond

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processing_outcomes")).
		WithArgs(
			job.ID, "/in/a.txt", domain.OutcomeSucceeded,
			"/out/a.txt.processed.txt", o.Summary, nil, nil,
			2, 1, int64(3), int64(120), int64(250),
			"worker-1", o.FinishedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Report(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ReportFailure(t *testing.T) {
	s, mock := newMockStorage(t)

	o := domain.NewFailure(domain.NewReadyJob("/in/b.txt"), &domain.PermanentIOError{Op: "read", Path: "/in/b.txt", Err: errors.New("gone")}, 1)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processing_outcomes")).
		WithArgs(
			o.JobID, "/in/b.txt", domain.OutcomeFailed,
			nil, nil, o.Reason, domain.KindPermanentIO,
			1, 0, int64(0), int64(0), int64(0),
			"worker-1", o.FinishedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Report(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ReportError(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processing_outcomes")).
		WillReturnError(errors.New("connection reset"))

	err := s.Report(context.Background(), domain.NewSuccess(domain.NewReadyJob("/in/c.txt"), "/out/c", "s"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store outcome")
}
