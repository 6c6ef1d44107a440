package report

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// LogReporter writes one log line per outcome
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs successes at info and failures at error level
func (r *LogReporter) Report(ctx context.Context, o domain.Outcome) error {
	if o.Succeeded() {
		r.logger.InfoContext(ctx, "File processed",
			slog.String("job_id", o.JobID),
			slog.String("path", o.Path),
			slog.String("output_path", o.OutputPath),
			slog.String("summary", o.Summary),
			slog.Int("input_size", o.InputSize),
			slog.Int("output_size", o.OutputSize),
			slog.Int("retries", o.Retries),
			slog.Duration("duration", o.Duration),
		)
		return nil
	}

	r.logger.ErrorContext(ctx, "File processing failed",
		slog.String("job_id", o.JobID),
		slog.String("path", o.Path),
		slog.String("reason", o.Reason),
		slog.String("kind", o.Kind),
		slog.Int("attempts", o.Attempts),
	)
	return nil
}
