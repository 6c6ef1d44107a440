package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// startJobDispatcher hands ready jobs to the pool in arrival order. A job
// whose path is still being processed is folded into that run instead of
// being dispatched. It closes jobsChan on return.
func (w *Worker) startJobDispatcher(ctx context.Context, ready <-chan domain.ReadyJob) {
	defer close(w.jobsChan)

	w.logger.Info("Job dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Job dispatcher stopped - context canceled")
			w.cancelQueued(ctx, ready)
			return

		case job, ok := <-ready:
			if !ok {
				w.logger.Info("Job dispatcher stopped - ready queue drained")
				return
			}

			if !w.inFlight.TryAcquire(job.Path) {
				w.logger.Debug("Path in flight, deferring to current run",
					slog.String("path", job.Path),
					slog.String("job_id", job.ID),
				)
				continue
			}

			select {
			case w.jobsChan <- job:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("path", job.Path),
					slog.String("job_id", job.ID),
				)
			case <-ctx.Done():
				w.inFlight.Release(job.Path)
				w.reportCanceled(ctx, job)
				w.logger.Info("Job dispatcher stopped while dispatching job")
				w.cancelQueued(ctx, ready)
				return
			}
		}
	}
}

// cancelQueued reports jobs already sitting in the ready queue so none of
// them ends without an outcome
func (w *Worker) cancelQueued(ctx context.Context, ready <-chan domain.ReadyJob) {
	for {
		select {
		case job, ok := <-ready:
			if !ok {
				return
			}
			w.reportCanceled(ctx, job)
		default:
			return
		}
	}
}

func (w *Worker) reportCanceled(ctx context.Context, job domain.ReadyJob) {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	w.report(ctx, domain.NewFailure(job, fmt.Errorf("not started: %w", cause), 0))
}
