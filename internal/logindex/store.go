package logindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default artifact names, created beside the log file unless overridden.
const (
	DefaultEntriesName   = "log_index.txt"
	DefaultWatermarkName = "index_info.txt"
)

// Store holds the paths of the two persisted index artifacts: the entry
// list (one "<date> <offset>" line per entry, sorted by date ascending)
// and the watermark (a single integer byte offset).
type Store struct {
	EntriesPath   string
	WatermarkPath string
}

// StoreFor returns a Store with the default artifact names in the same
// directory as the log file.
func StoreFor(logPath string) Store {
	dir := filepath.Dir(logPath)
	return Store{
		EntriesPath:   filepath.Join(dir, DefaultEntriesName),
		WatermarkPath: filepath.Join(dir, DefaultWatermarkName),
	}
}

// Exists reports whether the entry list artifact is present. A missing
// artifact means no index has been built yet.
func (s Store) Exists() bool {
	_, err := os.Stat(s.EntriesPath)
	return err == nil
}

// Load reads both artifacts into a State. A missing entry list yields an
// empty state, not an error. Parsing is defensive: an entry line that
// does not split into exactly two fields, or whose offset is not an
// integer, is skipped. A missing or corrupt watermark is treated as zero.
func (s Store) Load() (*State, error) {
	state := NewState()

	data, err := os.ReadFile(s.EntriesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, fmt.Errorf("read index entries: %w", err)
	}

	for line := range strings.Lines(string(data)) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			continue
		}
		state.Add(fields[0], offset)
	}

	state.SetWatermark(s.loadWatermark())
	return state, nil
}

// loadWatermark reads the watermark artifact. Unreadable or malformed
// content yields zero, which forces a full rescan on the next update.
func (s Store) loadWatermark() int64 {
	data, err := os.ReadFile(s.WatermarkPath)
	if err != nil {
		return 0
	}
	w, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || w < 0 {
		return 0
	}
	return w
}

// Save rewrites both artifacts from the state. The entry list is written
// sorted by date and replaced atomically via temp-file-then-rename.
func (s Store) Save(state *State) error {
	var b strings.Builder
	for _, e := range state.Entries() {
		fmt.Fprintf(&b, "%s %d\n", e.Date, e.Offset)
	}
	if err := writeFileAtomic(s.EntriesPath, []byte(b.String())); err != nil {
		return fmt.Errorf("write index entries: %w", err)
	}
	return s.SaveWatermark(state.Watermark())
}

// AppendEntries appends entries to the entry list artifact without
// rewriting existing lines. Callers pass entries sorted by date; since
// log dates are non-decreasing, appended dates sort after everything
// already in the file and the artifact stays globally sorted.
func (s Store) AppendEntries(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.EntriesPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open index entries: %w", err)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(f, "%s %d\n", e.Date, e.Offset); err != nil {
			f.Close()
			return fmt.Errorf("append index entry: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index entries: %w", err)
	}
	return nil
}

// SaveWatermark rewrites the watermark artifact.
func (s Store) SaveWatermark(offset int64) error {
	if err := writeFileAtomic(s.WatermarkPath, []byte(strconv.FormatInt(offset, 10))); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
