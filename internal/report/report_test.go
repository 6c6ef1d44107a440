package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func success(path string) domain.Outcome {
	o := domain.NewSuccess(domain.NewReadyJob(path), path+".out", "summary")
	o.Retries = 2
	o.Duration = 1500 * time.Millisecond
	return o
}

func failure(path string) domain.Outcome {
	return domain.NewFailure(domain.NewReadyJob(path), &domain.PermanentIOError{Op: "read", Path: path, Err: errors.New("gone")}, 1)
}

func TestMemory_RecentNewestFirst(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Report(ctx, success(fmt.Sprintf("f%d", i))))
	}

	recent := m.Recent("", 0)
	require.Len(t, recent, 3)
	assert.Equal(t, "f4", recent[0].Path)
	assert.Equal(t, "f3", recent[1].Path)
	assert.Equal(t, "f2", recent[2].Path)

	assert.Len(t, m.Recent("", 2), 2)
	assert.Equal(t, Counters{Succeeded: 5, Retries: 10}, m.Counters())
}

func TestMemory_FilterByStatus(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	require.NoError(t, m.Report(ctx, success("a")))
	require.NoError(t, m.Report(ctx, failure("b")))
	require.NoError(t, m.Report(ctx, success("c")))

	failed := m.Recent(domain.OutcomeFailed, 10)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Path)

	succeeded := m.Recent(domain.OutcomeSucceeded, 10)
	require.Len(t, succeeded, 2)
	assert.Equal(t, "c", succeeded[0].Path)

	assert.Equal(t, int64(1), m.Counters().Failed)
}

func TestMemory_Get(t *testing.T) {
	m := NewMemory(2)
	first := success("a")
	require.NoError(t, m.Report(context.Background(), first))

	got, ok := m.Get(first.JobID)
	require.True(t, ok)
	assert.Equal(t, "a", got.Path)

	// evicted once the ring wraps
	require.NoError(t, m.Report(context.Background(), success("b")))
	require.NoError(t, m.Report(context.Background(), success("c")))
	_, ok = m.Get(first.JobID)
	assert.False(t, ok)

	_, ok = m.Get("")
	assert.False(t, ok)
}

func TestMemory_Empty(t *testing.T) {
	m := NewMemory(0)
	assert.Empty(t, m.Recent("", 10))
	assert.Equal(t, Counters{}, m.Counters())
}

func TestMemory_ConcurrentReports(t *testing.T) {
	m := NewMemory(16)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Report(context.Background(), success(fmt.Sprintf("f%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(64), m.Counters().Succeeded)
	assert.Len(t, m.Recent("", 0), 16)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, r.Report(context.Background(), failure("/in/gone.txt")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "/in/gone.txt", line["path"])
	assert.Equal(t, domain.KindPermanentIO, line["kind"])
	assert.Equal(t, float64(1), line["attempts"])

	buf.Reset()
	require.NoError(t, r.Report(context.Background(), success("/in/ok.txt")))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "/in/ok.txt.out", line["output_path"])
}

func TestMulti_CallsEverySink(t *testing.T) {
	var calls []string
	sink := func(name string, err error) Reporter {
		return Func(func(ctx context.Context, o domain.Outcome) error {
			calls = append(calls, name)
			return err
		})
	}

	boom := errors.New("sink down")
	m := NewMulti(discardLogger(), sink("first", boom), nil, sink("second", nil))
	m.Add(sink("third", nil))

	err := m.Report(context.Background(), success("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

type fakePublisher struct {
	failures int
	err      error
	bodies   [][]byte
	types    []string
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, contentType string) error {
	if p.failures > 0 {
		p.failures--
		return p.err
	}
	p.bodies = append(p.bodies, body)
	p.types = append(p.types, contentType)
	return nil
}

func publishExecutor(maxRetries int) *retry.Executor {
	return retry.NewExecutor(retry.Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Retryable:    PublishRetryable,
	}, discardLogger(), retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
}

func TestAMQPReporter_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{failures: 2, err: errors.New("channel closed")}
	r := NewAMQPReporter(discardLogger(), pub, publishExecutor(3))

	o := success("/in/a.txt")
	require.NoError(t, r.Report(context.Background(), o))

	require.Len(t, pub.bodies, 1)
	assert.Equal(t, contentTypeJSON, pub.types[0])

	var msg map[string]any
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, "file.processed", msg["event"])
	assert.Equal(t, o.JobID, msg["job_id"])
	assert.Equal(t, domain.OutcomeSucceeded, msg["status"])
	assert.Equal(t, float64(1500), msg["duration_ms"])
}

func TestAMQPReporter_GivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 10, err: errors.New("broker unreachable")}
	r := NewAMQPReporter(discardLogger(), pub, publishExecutor(2))

	err := r.Report(context.Background(), failure("/in/b.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Empty(t, pub.bodies)
	assert.Equal(t, 8, pub.failures)
}

type stalledPublisher struct{ calls int }

func (p *stalledPublisher) Publish(ctx context.Context, _ []byte, _ string) error {
	p.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestAMQPReporter_PublishTimeout(t *testing.T) {
	pub := &stalledPublisher{}
	r := NewAMQPReporter(discardLogger(), pub, publishExecutor(3), WithPublishTimeout(20*time.Millisecond))

	start := time.Now()
	err := r.Report(context.Background(), success("/in/c.txt"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, pub.calls)
}

func TestPublishRetryable(t *testing.T) {
	assert.True(t, PublishRetryable(errors.New("x")))
	assert.False(t, PublishRetryable(nil))
	assert.False(t, PublishRetryable(fmt.Errorf("publish: %w", context.Canceled)))
	assert.False(t, PublishRetryable(context.DeadlineExceeded))
}
