package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
)

const contentTypeJSON = "application/json"

// Publisher sends one message body. shared/rabbitmq.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// outcomeEvent is the message published for every outcome
type outcomeEvent struct {
	Event string `json:"event"`
	domain.Outcome
	DurationMS int64 `json:"duration_ms"`
}

// AMQPReporter publishes outcomes as JSON, retrying failed publishes
type AMQPReporter struct {
	logger    *slog.Logger
	publisher Publisher
	retry     *retry.Executor
	timeout   time.Duration
}

// AMQPOption configures an AMQPReporter
type AMQPOption func(*AMQPReporter)

// WithPublishTimeout bounds one Report call, retries included. Zero means
// no bound.
func WithPublishTimeout(d time.Duration) AMQPOption {
	return func(r *AMQPReporter) {
		r.timeout = d
	}
}

// NewAMQPReporter creates a reporter. The executor's policy decides which
// publish errors are retried; PublishRetryable is a reasonable predicate.
func NewAMQPReporter(logger *slog.Logger, publisher Publisher, executor *retry.Executor, opts ...AMQPOption) *AMQPReporter {
	r := &AMQPReporter{
		logger:    logger,
		publisher: publisher,
		retry:     executor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report publishes the outcome
func (r *AMQPReporter) Report(ctx context.Context, o domain.Outcome) error {
	body, err := json.Marshal(outcomeEvent{
		Event:      "file." + eventSuffix(o),
		Outcome:    o,
		DurationMS: o.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, attempts, err := retry.Do(ctx, r.retry, "publish outcome", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.publisher.Publish(ctx, body, contentTypeJSON)
	})
	if err != nil {
		return fmt.Errorf("failed to publish outcome for %s after %d attempts: %w", o.Path, attempts, err)
	}

	r.logger.Debug("Outcome published",
		slog.String("job_id", o.JobID),
		slog.Int("body_size", len(body)),
	)
	return nil
}

// PublishRetryable retries every publish error except cancellation
func PublishRetryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func eventSuffix(o domain.Outcome) string {
	if o.Succeeded() {
		return "processed"
	}
	return "failed"
}
