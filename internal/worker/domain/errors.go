package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStrategyPanic is returned when a strategy panics while processing content
	ErrStrategyPanic = errors.New("strategy panicked")

	// ErrInvalidContent is returned by strategies for content they cannot process
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnknownStrategy is returned when a strategy name is not registered
	ErrUnknownStrategy = errors.New("unknown processing strategy")
)

// TransientIOError wraps I/O failures expected to clear shortly, such as a
// file held under an exclusive lock by another process
type TransientIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient %s error on %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// PermanentIOError wraps I/O failures that retrying cannot fix
type PermanentIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *PermanentIOError) Error() string {
	return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Path, e.Err)
}

func (e *PermanentIOError) Unwrap() error {
	return e.Err
}

// StrategyError wraps a strategy's refusal to process content
type StrategyError struct {
	FileName string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("processing %s: %v", e.FileName, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// NewStrategyError wraps err unless it already is a StrategyError
func NewStrategyError(fileName string, err error) error {
	var se *StrategyError
	if errors.As(err, &se) {
		return err
	}
	return &StrategyError{FileName: fileName, Err: err}
}

// RetryExhaustedError carries the last transient error after the retry
// budget is spent
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}
	var transient *TransientIOError
	return errors.As(err, &transient)
}

// Kind maps an error to the failure kind reported with the outcome
func Kind(err error) string {
	var (
		exhausted *RetryExhaustedError
		strategy  *StrategyError
		permanent *PermanentIOError
		transient *TransientIOError
	)

	// Order matters: RetryExhaustedError wraps a TransientIOError.
	switch {
	case err == nil:
		return ""
	case errors.As(err, &exhausted):
		return KindRetryExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &strategy):
		return KindStrategy
	case errors.As(err, &permanent):
		return KindPermanentIO
	case errors.As(err, &transient):
		return KindTransientIO
	default:
		return KindInternal
	}
}
