package logindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"logslice/internal/logging"
	"logslice/internal/scan"
)

// Build scans the entire log file and persists a fresh index. For each
// distinct date key the offset of its first line is recorded; later
// lines with the same date never overwrite it. The watermark is set to
// the file size observed at scan time.
//
// Building twice on an unmodified file produces identical artifacts.
func Build(ctx context.Context, logPath string, store Store, logger *slog.Logger) (*State, error) {
	logger = logging.Default(logger)

	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	state := NewState()
	if err := scanDates(ctx, f, 0, func(date string, offset int64) {
		state.Add(date, offset)
	}); err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	state.SetWatermark(info.Size())

	if err := store.Save(state); err != nil {
		return nil, err
	}

	logger.Info("index built",
		"log", logPath,
		"entries", state.Len(),
		"watermark", state.Watermark())
	return state, nil
}

// Update scans only the bytes appended since the state's watermark and
// records dates absent from both the existing index and this pass.
// New entries are appended to the entry list artifact and the watermark
// is advanced to the current file size. Existing entries are never
// modified. It returns the updated state and the number of new entries.
//
// If the file has not grown past the watermark (unchanged or truncated),
// Update is a no-op: nothing is rescanned and nothing is persisted.
func Update(ctx context.Context, logPath string, state *State, store Store, logger *slog.Logger) (*State, int, error) {
	logger = logging.Default(logger)

	f, err := os.Open(logPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	size := info.Size()

	if size <= state.Watermark() {
		logger.Debug("no new log data", "log", logPath, "watermark", state.Watermark())
		return state, 0, nil
	}

	if _, err := f.Seek(state.Watermark(), io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek to watermark: %w", err)
	}

	found := NewState()
	if err := scanDates(ctx, f, state.Watermark(), func(date string, offset int64) {
		if _, ok := state.Lookup(date); ok {
			return
		}
		found.Add(date, offset)
	}); err != nil {
		return nil, 0, err
	}

	fresh := found.Entries()
	if err := store.AppendEntries(fresh); err != nil {
		return nil, 0, err
	}
	for _, e := range fresh {
		state.Add(e.Date, e.Offset)
	}

	state.SetWatermark(size)
	if err := store.SaveWatermark(size); err != nil {
		return nil, 0, err
	}

	logger.Info("index updated",
		"log", logPath,
		"new_entries", len(fresh),
		"watermark", size)
	return state, len(fresh), nil
}

// scanDates reads lines from r starting at the given absolute offset and
// calls record with each line's date key and start offset. Lines too
// short to carry a date are skipped. The context is checked every 1024
// lines so long scans stay cancellable.
func scanDates(ctx context.Context, r io.Reader, offset int64, record func(date string, offset int64)) error {
	sc := scan.NewScanner(r, offset)
	n := 0
	for {
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n++

		line, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read log line: %w", err)
		}

		date, ok := scan.DateKey(line.Raw)
		if !ok {
			continue
		}
		record(date, line.Offset)
	}
}
