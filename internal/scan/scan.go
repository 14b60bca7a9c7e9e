// Package scan reads newline-terminated records from a byte range of a
// log file, tracking the absolute offset at which each line starts.
//
// Decoding is lenient: invalid UTF-8 bytes are dropped rather than
// surfaced as errors, so callers always get a string back. The first
// DateKeyLen bytes of a decoded line form its date key.
package scan

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// DateKeyLen is the width of the date prefix on each log line (YYYY-MM-DD).
const DateKeyLen = 10

// Line is one record read from the log file. Raw includes the trailing
// newline when the line was terminated; the final line of a file may not be.
type Line struct {
	Offset int64 // absolute byte offset of the first byte of the line
	Raw    []byte
}

// Scanner yields successive lines from a reader, starting at a known
// absolute offset. The caller is responsible for positioning the
// underlying reader before constructing the Scanner.
type Scanner struct {
	r      *bufio.Reader
	offset int64
}

// NewScanner wraps r, which must already be positioned at offset.
func NewScanner(r io.Reader, offset int64) *Scanner {
	return &Scanner{
		r:      bufio.NewReaderSize(r, 64*1024),
		offset: offset,
	}
}

// Offset returns the absolute offset at which the next line will start.
// This is the position after the most recently returned line, matching
// the file position a raw read loop would observe.
func (s *Scanner) Offset() int64 {
	return s.offset
}

// Next returns the next line. It returns io.EOF when the input is
// exhausted. A final line without a terminator is still returned; the
// following call reports io.EOF.
func (s *Scanner) Next() (Line, error) {
	raw, err := s.r.ReadBytes('\n')
	if len(raw) == 0 {
		if err == nil {
			err = io.EOF
		}
		return Line{}, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return Line{}, err
	}
	line := Line{Offset: s.offset, Raw: raw}
	s.offset += int64(len(raw))
	return line, nil
}

// Decode converts raw bytes to a string, dropping any invalid UTF-8
// sequences. The second return value reports whether anything was
// dropped (a lossy decode).
func Decode(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		b.Write(raw[i : i+size])
		i += size
	}
	return b.String(), true
}

// DateKey extracts the date prefix from a raw line. It reports false
// when the decoded line is too short to carry a date.
func DateKey(raw []byte) (string, bool) {
	text, _ := Decode(raw)
	if len(text) < DateKeyLen {
		return "", false
	}
	return text[:DateKeyLen], true
}
