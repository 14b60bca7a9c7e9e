// Package extract resolves a target date to its byte range in the log
// file and collects the matching lines with a parallel, offset-bounded
// scan.
package extract

import (
	"errors"

	"logslice/internal/logindex"
)

// ErrDateNotFound means the target date has no index entry. Callers use
// this to distinguish "no such date" from I/O failure.
var ErrDateNotFound = errors.New("date not found in index")

// Resolve computes the half-open byte range [start, end) containing all
// lines for the target date. start is the date's indexed first offset;
// end is the offset of the smallest indexed date strictly greater than
// the target, or fileSize when no later date exists.
//
// Correctness depends on log lines being date-sorted non-decreasing. If
// that assumption is violated the resolved range may omit out-of-order
// lines for the target date; the input is not validated.
func Resolve(state *logindex.State, date string, fileSize int64) (start, end int64, err error) {
	start, ok := state.Lookup(date)
	if !ok {
		return 0, 0, ErrDateNotFound
	}
	if next, ok := state.NextAfter(date); ok {
		return start, next.Offset, nil
	}
	return start, fileSize, nil
}
