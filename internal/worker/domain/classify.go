package domain

import (
	"errors"
	"syscall"
)

// defaultLockErrnos are the errors a locked or busy file reports on unix
var defaultLockErrnos = []syscall.Errno{
	syscall.EAGAIN,
	syscall.EBUSY,
	syscall.ETXTBSY,
}

// Classifier turns raw I/O errors into TransientIOError or PermanentIOError.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	lockErrnos []syscall.Errno
}

// NewClassifier creates a classifier that treats the default lock errors
// plus extraCodes (e.g. Windows ERROR_SHARING_VIOLATION = 32) as transient
func NewClassifier(extraCodes ...int) *Classifier {
	errnos := make([]syscall.Errno, 0, len(defaultLockErrnos)+len(extraCodes))
	errnos = append(errnos, defaultLockErrnos...)
	for _, code := range extraCodes {
		errnos = append(errnos, syscall.Errno(code))
	}
	return &Classifier{lockErrnos: errnos}
}

// Classify wraps err for the given operation and path. Errors that are
// already classified are returned unchanged.
func (c *Classifier) Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var (
		transient *TransientIOError
		permanent *PermanentIOError
	)
	if errors.As(err, &transient) || errors.As(err, &permanent) {
		return err
	}

	if c.isLocked(err) {
		return &TransientIOError{Op: op, Path: path, Err: err}
	}
	return &PermanentIOError{Op: op, Path: path, Err: err}
}

func (c *Classifier) isLocked(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	for _, locked := range c.lockErrnos {
		if errno == locked {
			return true
		}
	}
	return false
}
