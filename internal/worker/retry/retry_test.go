package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Retryable:    domain.IsTransient,
	}
}

// recordSleeps returns a SleepFunc that records delays instead of waiting
func recordSleeps(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func lockErr() error {
	return &domain.TransientIOError{Op: "read", Path: "a.txt", Err: syscall.EBUSY}
}

func TestPolicy_Backoff(t *testing.T) {
	p := testPolicy(10)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
		2 * time.Second,
	}
	for i, expected := range want {
		assert.Equal(t, expected, p.Backoff(i+1), "retry %d", i+1)
	}

	t.Run("large retry numbers stay capped", func(t *testing.T) {
		assert.Equal(t, 2*time.Second, p.Backoff(200))
	})

	t.Run("max below initial caps immediately", func(t *testing.T) {
		capped := Policy{InitialDelay: time.Second, MaxDelay: 300 * time.Millisecond}
		assert.Equal(t, 300*time.Millisecond, capped.Backoff(1))
	})
}

func TestPolicy_Next(t *testing.T) {
	p := testPolicy(3)

	tests := []struct {
		name      string
		attempt   int
		err       error
		wantState State
		wantDelay time.Duration
	}{
		{name: "success", attempt: 1, err: nil, wantState: Succeeded},
		{name: "transient first attempt", attempt: 1, err: lockErr(), wantState: Retrying, wantDelay: 100 * time.Millisecond},
		{name: "transient second attempt", attempt: 2, err: lockErr(), wantState: Retrying, wantDelay: 200 * time.Millisecond},
		{name: "transient at budget", attempt: 3, err: lockErr(), wantState: Exhausted},
		{name: "permanent", attempt: 1, err: &domain.PermanentIOError{Op: "read", Path: "a", Err: syscall.ENOENT}, wantState: Failed},
		{name: "unclassified", attempt: 1, err: errors.New("boom"), wantState: Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, delay := p.Next(tt.attempt, tt.err)
			assert.Equal(t, tt.wantState, state, "got %s", state)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}

	t.Run("nil predicate never retries", func(t *testing.T) {
		state, _ := Policy{MaxRetries: 5}.Next(1, lockErr())
		assert.Equal(t, Failed, state)
	})
}

func TestPolicy_MaxAttempts(t *testing.T) {
	assert.Equal(t, 1, Policy{MaxRetries: 0}.MaxAttempts())
	assert.Equal(t, 1, Policy{MaxRetries: 1}.MaxAttempts())
	assert.Equal(t, 10, Policy{MaxRetries: 10}.MaxAttempts())
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	e := NewExecutor(testPolicy(10), testLogger(), WithSleep(recordSleeps(&delays)))

	calls := 0
	value, attempts, err := Do(context.Background(), e, "read", func(ctx context.Context) (string, error) {
		calls++
		if calls <= 3 {
			return "", lockErr()
		}
		return "content", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "content", value)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, delays)
}

func TestDo_ExhaustsAfterMaxRetries(t *testing.T) {
	var delays []time.Duration
	e := NewExecutor(testPolicy(7), testLogger(), WithSleep(recordSleeps(&delays)))

	calls := 0
	_, attempts, err := Do(context.Background(), e, "read", func(ctx context.Context) (int, error) {
		calls++
		return 0, lockErr()
	})

	require.Error(t, err)
	assert.Equal(t, 7, calls)
	assert.Equal(t, 7, attempts)

	var exhausted *domain.RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 7, exhausted.Attempts)
	assert.ErrorIs(t, err, syscall.EBUSY)
	assert.Equal(t, domain.KindRetryExhausted, domain.Kind(err))

	// no wait after the final failure
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
	}, delays)
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	var delays []time.Duration
	e := NewExecutor(testPolicy(10), testLogger(), WithSleep(recordSleeps(&delays)))

	permanent := &domain.PermanentIOError{Op: "read", Path: "gone.txt", Err: syscall.ENOENT}
	calls := 0
	_, attempts, err := Do(context.Background(), e, "read", func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})

	require.Error(t, err)
	assert.Same(t, permanent, err.(*domain.PermanentIOError))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, delays)
}

func TestDo_ZeroRetriesMakesOneAttempt(t *testing.T) {
	e := NewExecutor(testPolicy(0), testLogger(), WithSleep(recordSleeps(new([]time.Duration))))

	calls := 0
	_, attempts, err := Do(context.Background(), e, "read", func(ctx context.Context) (int, error) {
		calls++
		return 0, lockErr()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, domain.KindRetryExhausted, domain.Kind(err))
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	policy := testPolicy(10)
	policy.InitialDelay = time.Hour
	policy.MaxDelay = time.Hour
	e := NewExecutor(policy, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	calls := 0
	_, attempts, err := Do(ctx, e, "read", func(ctx context.Context) (int, error) {
		calls++
		return 0, lockErr()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.KindCanceled, domain.Kind(err))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDo_CanceledContextSkipsAttempt(t *testing.T) {
	e := NewExecutor(testPolicy(3), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, attempts, err := Do(ctx, e, "read", func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, attempts)
}

func TestDo_RealSleepWaits(t *testing.T) {
	policy := testPolicy(3)
	policy.InitialDelay = 10 * time.Millisecond
	e := NewExecutor(policy, testLogger())

	calls := 0
	start := time.Now()
	_, attempts, err := Do(context.Background(), e, "read", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, lockErr()
		}
		return 1, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
