package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := NewClassifier(1234)

	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{
			name:          "busy file is transient",
			err:           &fs.PathError{Op: "open", Path: "a.txt", Err: syscall.EBUSY},
			wantTransient: true,
		},
		{
			name:          "would block is transient",
			err:           &fs.PathError{Op: "open", Path: "a.txt", Err: syscall.EAGAIN},
			wantTransient: true,
		},
		{
			name:          "configured lock code is transient",
			err:           &fs.PathError{Op: "open", Path: "a.txt", Err: syscall.Errno(1234)},
			wantTransient: true,
		},
		{
			name:          "missing file is permanent",
			err:           &fs.PathError{Op: "open", Path: "a.txt", Err: syscall.ENOENT},
			wantTransient: false,
		},
		{
			name:          "permission denied is permanent",
			err:           &fs.PathError{Op: "open", Path: "a.txt", Err: syscall.EACCES},
			wantTransient: false,
		},
		{
			name:          "plain error is permanent",
			err:           errors.New("boom"),
			wantTransient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifier.Classify("read", "a.txt", tt.err)
			require.Error(t, classified)
			assert.Equal(t, tt.wantTransient, IsTransient(classified))
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifier_KeepsExistingClassification(t *testing.T) {
	classifier := NewClassifier()

	original := &TransientIOError{Op: "write", Path: "b.txt", Err: errors.New("locked")}
	assert.Same(t, original, classifier.Classify("read", "a.txt", original).(*TransientIOError))
	assert.NoError(t, classifier.Classify("read", "a.txt", nil))
}

func TestClassifier_MissingFile(t *testing.T) {
	_, err := os.ReadFile(t.TempDir() + "/missing.txt")
	require.Error(t, err)

	classified := NewClassifier().Classify("read", "missing.txt", err)
	assert.False(t, IsTransient(classified))
	assert.Equal(t, KindPermanentIO, Kind(classified))
	assert.ErrorIs(t, classified, fs.ErrNotExist)
}

func TestKind(t *testing.T) {
	transient := &TransientIOError{Op: "read", Path: "a", Err: syscall.EBUSY}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "transient", err: transient, want: KindTransientIO},
		{name: "permanent", err: &PermanentIOError{Op: "read", Path: "a", Err: syscall.ENOENT}, want: KindPermanentIO},
		{name: "strategy", err: NewStrategyError("a", ErrInvalidContent), want: KindStrategy},
		{name: "exhausted wraps transient", err: &RetryExhaustedError{Attempts: 3, Err: transient}, want: KindRetryExhausted},
		{name: "canceled", err: fmt.Errorf("waiting: %w", context.Canceled), want: KindCanceled},
		{name: "unknown", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestIsTransient_ExhaustedIsTerminal(t *testing.T) {
	transient := &TransientIOError{Op: "read", Path: "a", Err: syscall.EBUSY}
	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(&RetryExhaustedError{Attempts: 2, Err: transient}))
}

func TestNewStrategyError_DoesNotDoubleWrap(t *testing.T) {
	first := NewStrategyError("a.txt", ErrInvalidContent)
	second := NewStrategyError("a.txt", first)
	assert.Same(t, first.(*StrategyError), second.(*StrategyError))
}

func TestNewFailure(t *testing.T) {
	job := NewReadyJob("/in/a.txt")
	err := &PermanentIOError{Op: "read", Path: job.Path, Err: syscall.ENOENT}

	outcome := NewFailure(job, err, 1)
	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.False(t, outcome.Succeeded())
	assert.Equal(t, KindPermanentIO, outcome.Kind)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 0, outcome.Retries)
	assert.Equal(t, job.ID, outcome.JobID)
	assert.Contains(t, outcome.Reason, "read failed")
}
