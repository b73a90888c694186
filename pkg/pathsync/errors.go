package pathsync

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks a request that cannot be run at all. Nothing has
	// been touched when it is returned.
	ErrPrecondition = errors.New("precondition failed")

	// ErrSyncIncomplete is returned when at least one action failed. Actions
	// that succeeded are not rolled back.
	ErrSyncIncomplete = errors.New("sync completed with errors")
)

// OpError records a failed filesystem operation on a path.
type OpError struct {
	Op     string // "copy", "rename", "mkdir", "delete"
	Path   string
	Target string // empty for single-path operations
	Err    error
}

func (e *OpError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Path, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
