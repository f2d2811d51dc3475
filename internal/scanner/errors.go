package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when a path or directory entry cannot be read.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotADirectory is returned when a recursive query is invoked on a non-directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrNotAFile is returned when a file query is invoked on something other than a regular file.
	ErrNotAFile = errors.New("not a regular file")
)

// PathError records a failed operation on a path.
// It unwraps to both its Kind sentinel and the underlying cause.
type PathError struct {
	// Op is the operation that failed (stat, readdir, ...).
	Op string
	// Path is the path the operation was applied to.
	Path string
	// Kind is one of the Err* sentinels, or nil if the failure is unclassified.
	Kind error
	// Err is the underlying cause.
	Err error
}

func (e *PathError) Error() string {
	if e.Kind != nil && (e.Err == nil || e.Err == e.Kind) {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Kind)
	}

	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the kind sentinel and the underlying cause.
func (e *PathError) Unwrap() []error {
	errs := make([]error, 0, 2)

	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}

	if e.Err != nil && e.Err != e.Kind {
		errs = append(errs, e.Err)
	}

	return errs
}

// newPathError wraps err, classifying it into one of the sentinel kinds.
// Context errors pass through untouched so callers can match them directly.
func newPathError(op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}

	return &PathError{Op: op, Path: path, Kind: classify(err), Err: err}
}

// classify maps a filesystem error to its sentinel kind.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.ENOTDIR):
		return ErrNotADirectory
	default:
		return nil
	}
}
