// Package output writes processed results next to each other in the output
// directory. Every write goes to a temporary file in the destination
// directory first and is renamed into place, so readers of the output
// directory only ever see complete files.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
	"github.com/cuongbtq/file-processor/internal/worker/retry"
)

const filePerm = 0o644

// Config holds writer configuration
type Config struct {
	Logger     *slog.Logger
	Dir        string
	Extension  string
	Retry      *retry.Executor
	Classifier *domain.Classifier
}

// Writer persists processing results atomically
type Writer struct {
	logger     *slog.Logger
	dir        string
	extension  string
	retry      *retry.Executor
	classifier *domain.Classifier

	// rename is swapped in tests to simulate a failing publish step
	rename func(oldpath, newpath string) error
}

// NewWriter creates a writer for cfg.Dir
func NewWriter(cfg *Config) *Writer {
	return &Writer{
		logger:     cfg.Logger,
		dir:        cfg.Dir,
		extension:  cfg.Extension,
		retry:      cfg.Retry,
		classifier: cfg.Classifier,
		rename:     os.Rename,
	}
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// PathFor returns the output path for an input file name. Only the base
// name is used, so inputs from nested directories land flat in Dir.
func (w *Writer) PathFor(fileName string) string {
	return filepath.Join(w.dir, filepath.Base(fileName)+w.extension)
}

// Write stores content as the output for fileName, retrying transient
// failures. It returns the final path and the number of attempts made.
// On failure the previous output, if any, is left untouched.
func (w *Writer) Write(ctx context.Context, fileName, content string) (string, int, error) {
	target := w.PathFor(fileName)

	_, attempts, err := retry.Do(ctx, w.retry, "write "+filepath.Base(target), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.classifier.Classify("write", target, w.writeAtomic(target, []byte(content)))
	})
	if err != nil {
		return "", attempts, err
	}

	w.logger.Debug("Output written",
		slog.String("output_path", target),
		slog.Int("size", len(content)),
		slog.Int("attempts", attempts),
	)
	return target, attempts, nil
}

// writeAtomic writes data to a sibling temp file, flushes it and renames it
// over target. The temp file is removed on any failure.
func (w *Writer) writeAtomic(target string, data []byte) (err error) {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			if removeErr := os.Remove(tmpName); removeErr != nil && !os.IsNotExist(removeErr) {
				w.logger.Warn("Failed to remove temp file",
					slog.String("path", tmpName),
					slog.String("error", removeErr.Error()),
				)
			}
		}
	}()

	if err = tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = w.rename(tmpName, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
