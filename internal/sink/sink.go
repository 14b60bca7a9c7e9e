// Package sink writes extracted lines to per-date output files.
package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Sink writes one output file per extracted date into Dir, creating the
// directory on first use. With Compress set, output is zstd-framed and
// the file gets a .zst suffix.
type Sink struct {
	Dir      string
	Compress bool
}

// Path returns the output file path for a date.
func (s Sink) Path(date string) string {
	name := "output_" + date + ".txt"
	if s.Compress {
		name += ".zst"
	}
	return filepath.Join(s.Dir, name)
}

// Write stores the lines for a date and returns the final path. Lines
// are written verbatim, in order, with their original terminators. The
// file is staged as a temp file and renamed into place so a failed
// write never leaves a partial output behind.
func (s Sink) Write(date string, lines []string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	target := s.Path(date)
	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}

	if err := s.writeLines(f, lines); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename output: %w", err)
	}
	return target, nil
}

func (s Sink) writeLines(f *os.File, lines []string) error {
	if s.Compress {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := enc.Write([]byte(line)); err != nil {
				enc.Close()
				return err
			}
		}
		return enc.Close()
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return w.Flush()
}
