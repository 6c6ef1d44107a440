package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures an Executor
type Option func(*Executor)

// WithSleep replaces the wait between attempts
func WithSleep(sleep SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// Executor applies a Policy to operations. It holds no per-operation state,
// so one Executor serves every worker; each backoff wait blocks only the
// goroutine whose operation failed.
type Executor struct {
	policy Policy
	logger *slog.Logger
	sleep  SleepFunc
}

// NewExecutor creates an executor for policy
func NewExecutor(policy Policy, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails permanently, or the policy gives up.
// It returns the value, the number of attempts made, and on failure either
// the non-retryable error, a *domain.RetryExhaustedError wrapping the last
// transient error, or the context error if ctx ended during a backoff wait.
func Do[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, fmt.Errorf("%s canceled before attempt %d: %w", name, attempt, err)
		}

		value, err := op(ctx)
		state, delay := e.policy.Next(attempt, err)

		switch state {
		case Succeeded:
			if attempt > 1 {
				e.logger.Info("Operation succeeded after retry",
					slog.String("operation", name),
					slog.Int("attempt", attempt),
				)
			}
			return value, attempt, nil

		case Failed:
			return zero, attempt, err

		case Exhausted:
			e.logger.Error("Operation failed after all retries",
				slog.String("operation", name),
				slog.Int("attempts", attempt),
				slog.Any("error", err),
			)
			return zero, attempt, &domain.RetryExhaustedError{Attempts: attempt, Err: err}

		case Retrying:
			e.logger.Warn("Operation failed, retrying...",
				slog.String("operation", name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", e.policy.MaxAttempts()),
				slog.Duration("retry_after", delay),
				slog.Any("error", err),
			)
			if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
				return zero, attempt, fmt.Errorf("%s interrupted during backoff: %w", name, sleepErr)
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
