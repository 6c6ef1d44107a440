package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case job, ok := <-w.jobsChan:
			if !ok {
				w.logger.Debug("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}
			w.runJob(ctx, workerName, job)
		}
	}
}

// runJob processes job and reports its outcome. If the path changed while
// it was processed, it is processed again before the path is released.
// The path never stays held after runJob returns.
func (w *Worker) runJob(ctx context.Context, workerName string, job domain.ReadyJob) {
	path := job.Path
	released := false

	w.active.Add(1)
	defer func() {
		w.active.Add(-1)
		if !released {
			w.inFlight.Release(path)
		}
		if r := recover(); r != nil {
			w.logger.Error("Worker recovered from panic",
				slog.String("worker_name", workerName),
				slog.String("path", path),
				slog.Any("panic", r),
			)
		}
	}()

	for {
		w.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", job.ID),
			slog.String("path", path),
		)

		w.report(ctx, w.processJob(ctx, job))

		if !w.inFlight.Finish(path) {
			released = true
			return
		}
		if ctx.Err() != nil {
			w.logger.Warn("Dropping rerun of changed path on shutdown",
				slog.String("worker_name", workerName),
				slog.String("path", path),
			)
			return
		}

		job = domain.NewReadyJob(path)
		w.logger.Info("Path changed during processing, running again",
			slog.String("worker_name", workerName),
			slog.String("path", path),
			slog.String("job_id", job.ID),
		)
	}
}

// report delivers the outcome even when ctx is already canceled
func (w *Worker) report(ctx context.Context, outcome domain.Outcome) {
	if w.reporter == nil {
		return
	}
	if err := w.reporter.Report(context.WithoutCancel(ctx), outcome); err != nil {
		w.logger.Warn("Failed to report outcome",
			slog.String("job_id", outcome.JobID),
			slog.String("path", outcome.Path),
			slog.String("error", err.Error()),
		)
	}
}
