package domain

import (
	"errors"

	workerdomain "github.com/cuongbtq/file-processor/internal/worker/domain"
)

var (
	ErrOutcomeNotFound = errors.New("outcome not found")
	ErrInvalidCursor   = errors.New("invalid cursor")
	ErrInvalidStatus   = errors.New("invalid status filter")
)

// ValidStatus reports whether s is usable as a status filter. Empty means all.
func ValidStatus(s string) bool {
	switch s {
	case "", workerdomain.OutcomeSucceeded, workerdomain.OutcomeFailed:
		return true
	}
	return false
}
