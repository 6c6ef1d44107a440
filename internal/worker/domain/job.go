package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the kind of filesystem change that produced a FileEvent
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
)

// FileEvent is a raw filesystem notification produced by the watcher adapter
type FileEvent struct {
	Path       string
	Kind       EventKind
	DetectedAt time.Time
}

// NewFileEvent creates an event stamped with the current time
func NewFileEvent(path string, kind EventKind) FileEvent {
	return FileEvent{
		Path:       path,
		Kind:       kind,
		DetectedAt: time.Now(),
	}
}

// ReadyJob means the path has been quiet for the debounce delay and is safe to read
type ReadyJob struct {
	ID      string
	Path    string
	ReadyAt time.Time
}

// NewReadyJob creates a job with a fresh correlation id
func NewReadyJob(path string) ReadyJob {
	return ReadyJob{
		ID:      uuid.NewString(),
		Path:    path,
		ReadyAt: time.Now(),
	}
}
