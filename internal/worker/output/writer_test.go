package output

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, maxRetries int) *Writer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	executor := retry.NewExecutor(retry.Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Retryable:    domain.IsTransient,
	}, logger, retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	return NewWriter(&Config{
		Logger:     logger,
		Dir:        t.TempDir(),
		Extension:  ".processed.txt",
		Retry:      executor,
		Classifier: domain.NewClassifier(),
	})
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriter_PathFor(t *testing.T) {
	w := newTestWriter(t, 1)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain name", input: "hello.txt", want: "hello.txt.processed.txt"},
		{name: "nested input keeps base name", input: "/in/sub/dir/report.csv", want: "report.csv.processed.txt"},
		{name: "no extension", input: "README", want: "README.processed.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.Join(w.Dir(), tt.want), w.PathFor(tt.input))
		})
	}
}

func TestWriter_Write(t *testing.T) {
	w := newTestWriter(t, 3)

	path, attempts, err := w.Write(context.Background(), "/in/hello.txt", "result body")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, filepath.Join(w.Dir(), "hello.txt.processed.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "result body", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())

	assert.Equal(t, []string{"hello.txt.processed.txt"}, listDir(t, w.Dir()))
}

func TestWriter_OverwritesPreviousOutput(t *testing.T) {
	w := newTestWriter(t, 3)

	_, _, err := w.Write(context.Background(), "a.txt", "first")
	require.NoError(t, err)
	path, _, err := w.Write(context.Background(), "a.txt", "second")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Len(t, listDir(t, w.Dir()), 1)
}

func TestWriter_FailedRenameKeepsPreviousOutput(t *testing.T) {
	w := newTestWriter(t, 3)

	path, _, err := w.Write(context.Background(), "a.txt", "old content")
	require.NoError(t, err)

	w.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EIO}
	}

	_, attempts, err := w.Write(context.Background(), "a.txt", "new content")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, domain.KindPermanentIO, domain.Kind(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old content", string(data))

	// no partial or temp files left behind
	assert.Equal(t, []string{"a.txt.processed.txt"}, listDir(t, w.Dir()))
}

func TestWriter_RetriesTransientRename(t *testing.T) {
	w := newTestWriter(t, 5)

	failures := 2
	w.rename = func(oldpath, newpath string) error {
		if failures > 0 {
			failures--
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EBUSY}
		}
		return os.Rename(oldpath, newpath)
	}

	path, attempts, err := w.Write(context.Background(), "busy.txt", "eventually")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "eventually", string(data))
	assert.Equal(t, []string{"busy.txt.processed.txt"}, listDir(t, w.Dir()))
}

func TestWriter_ExhaustsOnPersistentLock(t *testing.T) {
	w := newTestWriter(t, 2)
	w.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EBUSY}
	}

	_, attempts, err := w.Write(context.Background(), "busy.txt", "never")
	require.Error(t, err)
	assert.Equal(t, 2, attempts)

	var exhausted *domain.RetryExhaustedError
	assert.True(t, errors.As(err, &exhausted))
	assert.Empty(t, listDir(t, w.Dir()))
}

func TestWriter_MissingDirectory(t *testing.T) {
	w := newTestWriter(t, 3)
	w.dir = filepath.Join(w.dir, "does-not-exist")

	_, attempts, err := w.Write(context.Background(), "a.txt", "x")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
