// Package watcher adapts fsnotify to the pipeline. It turns OS notifications
// for the input directory into domain.FileEvent values on a bounded channel.
//
//	w, err := watcher.New(watcher.Config{Dir: "./input_files", Recursive: true}, logger)
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx)
//	for event := range w.Events() {
//	    ...
//	}
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// Config holds watcher configuration
type Config struct {
	Dir          string
	Recursive    bool
	ScanExisting bool
	BufferSize   int
}

// Watcher emits created and modified events for regular files under Dir
type Watcher struct {
	cfg    Config
	logger *slog.Logger
	fsw    *fsnotify.Watcher
	events chan domain.FileEvent
}

// New creates a watcher. Nothing is watched until Run is called.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	fsw, err := fsnotify.NewBufferedWatcher(uint(cfg.BufferSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		logger: logger,
		fsw:    fsw,
		events: make(chan domain.FileEvent, cfg.BufferSize),
	}, nil
}

// Events returns the event stream. It is closed when Run returns.
func (w *Watcher) Events() <-chan domain.FileEvent {
	return w.events
}

// Run watches the directory until ctx is done or the OS watcher fails.
// Sends block when the event channel is full, which back-pressures the
// OS queue instead of dropping events.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fsw.Close()

	if err := w.addTree(w.cfg.Dir); err != nil {
		return err
	}

	w.logger.Info("Watching input directory",
		slog.String("dir", w.cfg.Dir),
		slog.Bool("recursive", w.cfg.Recursive),
	)

	if w.cfg.ScanExisting {
		if err := w.scan(ctx, w.cfg.Dir); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopped - context canceled")
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, ev); err != nil {
				return err
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("Watcher queue overflowed, rescanning",
					slog.String("dir", w.cfg.Dir),
				)
				if err := w.scan(ctx, w.cfg.Dir); err != nil {
					return err
				}
				continue
			}
			w.logger.Error("Watcher error",
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) error {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			// gone already; a later event will bring it back if it returns
			w.logger.Debug("Created path vanished",
				slog.String("path", ev.Name),
			)
			return nil
		}
		if info.IsDir() {
			if !w.cfg.Recursive {
				return nil
			}
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()),
				)
				return nil
			}
			// files written before the watch was added would be missed otherwise
			return w.scan(ctx, ev.Name)
		}
		if info.Mode().IsRegular() {
			return w.send(ctx, domain.NewFileEvent(ev.Name, domain.EventCreated))
		}

	case ev.Has(fsnotify.Write):
		return w.send(ctx, domain.NewFileEvent(ev.Name, domain.EventModified))
	}

	// remove, rename and chmod produce nothing to process
	return nil
}

func (w *Watcher) send(ctx context.Context, event domain.FileEvent) error {
	select {
	case w.events <- event:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// addTree adds dir and, when recursive, every directory below it
func (w *Watcher) addTree(dir string) error {
	if !w.cfg.Recursive {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// scan emits a created event for every regular file already under dir
func (w *Watcher) scan(ctx context.Context, dir string) error {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Skipping unreadable path during scan",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != dir && !w.cfg.Recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		count++
		return w.send(ctx, domain.NewFileEvent(path, domain.EventCreated))
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	w.logger.Info("Scanned existing files",
		slog.String("dir", dir),
		slog.Int("files", count),
	)
	return nil
}
