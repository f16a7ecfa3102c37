package scan

import (
	"errors"
	"fmt"
)

// FailureKind distinguishes the ways a scan can fail without a verdict.
type FailureKind string

const (
	// FailureSource: the byte source could not be opened or read. No result
	// is produced and nothing is persisted.
	FailureSource FailureKind = "source_unavailable"

	// FailureScoring: the scoring adapter failed mid-scan. The scan fails
	// closed; it is never silently classified benign, and it is not retried.
	FailureScoring FailureKind = "scoring_failure"
)

// Error is a scan failure with a distinguishable kind.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scan failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a scan failure from an error chain.
func AsError(err error) (*Error, bool) {
	var scanErr *Error
	if errors.As(err, &scanErr) {
		return scanErr, true
	}
	return nil, false
}
