// Package report delivers terminal job outcomes to observability sinks.
package report

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// Reporter receives each terminal outcome exactly once
type Reporter interface {
	Report(ctx context.Context, outcome domain.Outcome) error
}

// Func adapts a function to a Reporter
type Func func(ctx context.Context, outcome domain.Outcome) error

func (f Func) Report(ctx context.Context, outcome domain.Outcome) error {
	return f(ctx, outcome)
}

// Multi fans an outcome out to several reporters. Every sink is called even
// when an earlier one fails; failures are logged and joined.
type Multi struct {
	logger    *slog.Logger
	reporters []Reporter
}

// NewMulti creates a fan-out reporter. Nil reporters are skipped.
func NewMulti(logger *slog.Logger, reporters ...Reporter) *Multi {
	m := &Multi{logger: logger}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

// Add appends a reporter
func (m *Multi) Add(r Reporter) {
	if r != nil {
		m.reporters = append(m.reporters, r)
	}
}

// Report calls every sink
func (m *Multi) Report(ctx context.Context, outcome domain.Outcome) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, outcome); err != nil {
			m.logger.Warn("Outcome sink failed",
				slog.String("job_id", outcome.JobID),
				slog.String("path", outcome.Path),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
