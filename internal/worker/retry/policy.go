// Package retry runs fallible operations under a bounded exponential backoff
// policy. The decision of what happens after each attempt is a pure function
// (Policy.Next) so the backoff and termination rules can be tested without
// running anything.
package retry

import "time"

// State is where the retry state machine goes after an attempt
type State int

const (
	// Succeeded: the attempt returned no error
	Succeeded State = iota
	// Retrying: transient failure, wait Backoff and attempt again
	Retrying
	// Failed: non-retryable error, propagate immediately
	Failed
	// Exhausted: transient failure but the attempt budget is spent
	Exhausted
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Retrying:
		return "retrying"
	case Failed:
		return "failed"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Policy is an immutable retry configuration shared read-only by all workers
type Policy struct {
	// MaxRetries is the number of consecutive transient failures after which
	// the operation gives up. Zero still allows a single attempt.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable classifies errors; nil means nothing is retried
	Retryable func(error) bool
}

// MaxAttempts is the total number of attempts the policy allows
func (p Policy) MaxAttempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// Backoff returns the wait before retry k (k = 1 is the first retry):
// min(InitialDelay * 2^(k-1), MaxDelay)
func (p Policy) Backoff(k int) time.Duration {
	if k < 1 {
		k = 1
	}

	delay := p.InitialDelay
	for i := 1; i < k; i++ {
		if delay >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}

	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Next decides the transition after attempt number attempt (1-based)
// finished with err, and the delay to wait when the answer is Retrying
func (p Policy) Next(attempt int, err error) (State, time.Duration) {
	switch {
	case err == nil:
		return Succeeded, 0
	case p.Retryable == nil || !p.Retryable(err):
		return Failed, 0
	case attempt >= p.MaxAttempts():
		return Exhausted, 0
	default:
		return Retrying, p.Backoff(attempt)
	}
}
