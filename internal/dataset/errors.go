package dataset

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups for IDs absent from the current
// snapshot. It is an expected outcome, not a system failure; the web layer
// translates it to a 404.
var ErrNotFound = errors.New("record not found")

// ParseError reports a structural problem with the upstream CSV that makes
// the whole dataset unusable, such as a header missing required columns.
// Row-level validation issues are not ParseErrors; those rows are skipped
// and counted instead.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse dataset: " + e.Reason
}

// BuildError reports an internal inconsistency while deriving views, such
// as a duplicate record ID. It signals upstream data corruption and aborts
// the refresh cycle; the previously published snapshot stays authoritative.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return "build views: " + e.Reason
}

func buildErrorf(format string, args ...any) *BuildError {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}
