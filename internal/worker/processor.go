package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
)

// processJob reads, transforms and writes one file. It always returns a
// terminal outcome; nothing it calls can take the worker down.
func (w *Worker) processJob(ctx context.Context, job domain.ReadyJob) (outcome domain.Outcome) {
	start := time.Now()
	attempts, retries := 0, 0

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job panicked",
				slog.String("job_id", job.ID),
				slog.String("path", job.Path),
				slog.Any("panic", r),
			)
			outcome = domain.NewFailure(job, fmt.Errorf("processing panicked: %v", r), attempts)
		}
		outcome.Duration = time.Since(start)
	}()

	fail := func(stage string, err error) domain.Outcome {
		o := domain.NewFailure(job, fmt.Errorf("%s: %w", stage, err), attempts)
		o.Retries = retries
		return o
	}

	// Step 1: read the whole file, retrying while it is locked
	content, readAttempts, err := retry.Do(ctx, w.retry, "read "+filepath.Base(job.Path), func(ctx context.Context) ([]byte, error) {
		data, err := w.readFile(job.Path)
		return data, w.classifier.Classify("read", job.Path, err)
	})
	attempts += readAttempts
	retries += max(readAttempts-1, 0)
	if err != nil {
		return fail("read input", err)
	}

	// Step 2: run the strategy
	fileName := filepath.Base(job.Path)
	result, err := w.runStrategy(fileName, content)
	if err != nil {
		return fail("process content", err)
	}

	// Step 3: commit the output
	outputPath, writeAttempts, err := w.writer.Write(ctx, job.Path, result)
	attempts += writeAttempts
	retries += max(writeAttempts-1, 0)
	if err != nil {
		return fail("write output", err)
	}

	// Step 4: optionally remove the input
	if w.deleteInput {
		if err := os.Remove(job.Path); err != nil {
			w.logger.Warn("Failed to remove processed input",
				slog.String("path", job.Path),
				slog.String("error", err.Error()),
			)
		}
	}

	outcome = domain.NewSuccess(job, outputPath, firstLine(result))
	outcome.Attempts = attempts
	outcome.Retries = retries
	outcome.InputSize = len(content)
	outcome.OutputSize = len(result)
	return outcome
}

// runStrategy isolates strategy panics to the job that caused them
func (w *Worker) runStrategy(fileName string, content []byte) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewStrategyError(fileName, fmt.Errorf("%w: %v", domain.ErrStrategyPanic, r))
		}
	}()

	result, err = w.strategy.Process(fileName, content)
	if err != nil {
		return "", domain.NewStrategyError(fileName, err)
	}
	return result, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
