// Package logindex maintains a persisted index from date key to the byte
// offset of that date's first line in an append-only log file, plus a
// watermark recording how far into the file the index has scanned.
//
// The index lets extraction seek directly to a date's block instead of
// scanning the whole file. It relies on log lines being written in
// non-decreasing date order; that ordering is assumed, not validated.
package logindex

import (
	"slices"
	"strings"
)

// Entry is a date's first-occurrence byte offset. Once created, an
// entry's offset is never updated.
type Entry struct {
	Date   string
	Offset int64
}

// State is the in-memory index: the entry set (unique by date) and the
// watermark, the offset up to which the log file has been scanned.
// State has no internal locking; build, update, and resolve run
// sequentially relative to each other.
type State struct {
	offsets   map[string]int64
	watermark int64
}

// NewState returns an empty index state with watermark zero.
func NewState() *State {
	return &State{offsets: make(map[string]int64)}
}

// Lookup returns the first-occurrence offset for a date.
func (s *State) Lookup(date string) (int64, bool) {
	off, ok := s.offsets[date]
	return off, ok
}

// Add records a date's first offset. It reports false without modifying
// the state when the date is already present: first occurrence wins.
func (s *State) Add(date string, offset int64) bool {
	if _, ok := s.offsets[date]; ok {
		return false
	}
	s.offsets[date] = offset
	return true
}

// Len returns the number of indexed dates.
func (s *State) Len() int {
	return len(s.offsets)
}

// Watermark returns the offset up to which the file has been scanned.
func (s *State) Watermark() int64 {
	return s.watermark
}

// SetWatermark records a new scan boundary.
func (s *State) SetWatermark(offset int64) {
	s.watermark = offset
}

// Entries returns all entries sorted by date ascending. Dates are
// fixed-width YYYY-MM-DD strings, so lexicographic order is
// chronological order.
func (s *State) Entries() []Entry {
	entries := make([]Entry, 0, len(s.offsets))
	for date, off := range s.offsets {
		entries = append(entries, Entry{Date: date, Offset: off})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Date, b.Date)
	})
	return entries
}

// NextAfter returns the entry with the smallest date strictly greater
// than the given date.
func (s *State) NextAfter(date string) (Entry, bool) {
	var next Entry
	found := false
	for d, off := range s.offsets {
		if d <= date {
			continue
		}
		if !found || d < next.Date {
			next = Entry{Date: d, Offset: off}
			found = true
		}
	}
	return next, found
}
