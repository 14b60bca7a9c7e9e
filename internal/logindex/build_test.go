package logindex

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeLog(t *testing.T, content string) (string, Store) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path, StoreFor(path)
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open log for append: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}
}

func TestBuild(t *testing.T) {
	// Each line is 14 bytes.
	path, store := writeLog(t, "2024-01-01 aa\n2024-01-01 bb\n2024-01-02 cc\n")

	state, err := Build(context.Background(), path, store, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if off, ok := state.Lookup("2024-01-01"); !ok || off != 0 {
		t.Fatalf("2024-01-01 = (%d, %v), want (0, true)", off, ok)
	}
	if off, ok := state.Lookup("2024-01-02"); !ok || off != 28 {
		t.Fatalf("2024-01-02 = (%d, %v), want (28, true)", off, ok)
	}
	if state.Watermark() != 42 {
		t.Fatalf("watermark = %d, want 42", state.Watermark())
	}

	// Artifacts round-trip to the same state.
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries(), state.Entries()) {
		t.Fatalf("loaded entries = %v, want %v", loaded.Entries(), state.Entries())
	}
	if loaded.Watermark() != 42 {
		t.Fatalf("loaded watermark = %d, want 42", loaded.Watermark())
	}
}

func TestBuildIdempotent(t *testing.T) {
	path, store := writeLog(t, "2024-01-01 aa\n2024-01-02 bb\n2024-01-03 cc\n")

	if _, err := Build(context.Background(), path, store, nil); err != nil {
		t.Fatalf("first build: %v", err)
	}
	first, err := os.ReadFile(store.EntriesPath)
	if err != nil {
		t.Fatalf("read entries: %v", err)
	}

	if _, err := Build(context.Background(), path, store, nil); err != nil {
		t.Fatalf("second build: %v", err)
	}
	second, err := os.ReadFile(store.EntriesPath)
	if err != nil {
		t.Fatalf("read entries: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("rebuild changed entries artifact: %q vs %q", first, second)
	}
}

func TestBuildSkipsShortAndUndecodableLines(t *testing.T) {
	content := "short\n" +
		"2024-01-01 aa\n" +
		"\n" +
		string([]byte{0xff, 0xfe, 0xfd, '\n'}) +
		"2024-01-02 bb\n"
	path, store := writeLog(t, content)

	state, err := Build(context.Background(), path, store, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if state.Len() != 2 {
		t.Fatalf("entries = %d, want 2", state.Len())
	}
	if off, ok := state.Lookup("2024-01-01"); !ok || off != 6 {
		t.Fatalf("2024-01-01 = (%d, %v), want (6, true)", off, ok)
	}
}

func TestBuildMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nope.log")
	if _, err := Build(context.Background(), path, StoreFor(path), nil); err == nil {
		t.Fatal("expected error for missing log file")
	}
}

func TestUpdateAppendsNewDates(t *testing.T) {
	path, store := writeLog(t, "2024-01-01 aa\n2024-01-01 bb\n2024-01-02 cc\n")

	state, err := Build(context.Background(), path, store, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	appendLog(t, path, "2024-01-02 dd\n2024-01-03 ee\n")

	state, added, err := Update(context.Background(), path, state, store, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}

	// The pre-existing date keeps its original first offset.
	if off, _ := state.Lookup("2024-01-02"); off != 28 {
		t.Fatalf("2024-01-02 = %d, want 28 (must not move)", off)
	}
	if off, ok := state.Lookup("2024-01-03"); !ok || off != 56 {
		t.Fatalf("2024-01-03 = (%d, %v), want (56, true)", off, ok)
	}
	if state.Watermark() != 70 {
		t.Fatalf("watermark = %d, want 70", state.Watermark())
	}

	// Persisted artifacts agree.
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries(), state.Entries()) {
		t.Fatalf("loaded entries = %v, want %v", loaded.Entries(), state.Entries())
	}
	if loaded.Watermark() != 70 {
		t.Fatalf("loaded watermark = %d, want 70", loaded.Watermark())
	}
}

func TestUpdateNoNewData(t *testing.T) {
	path, store := writeLog(t, "2024-01-01 aa\n")

	state, err := Build(context.Background(), path, store, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	before, err := os.ReadFile(store.EntriesPath)
	if err != nil {
		t.Fatalf("read entries: %v", err)
	}

	state, added, err := Update(context.Background(), path, state, store, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}
	if state.Watermark() != 14 {
		t.Fatalf("watermark = %d, want 14", state.Watermark())
	}

	after, err := os.ReadFile(store.EntriesPath)
	if err != nil {
		t.Fatalf("read entries: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("no-op update must not touch the entries artifact")
	}
}

func TestUpdateTruncatedFileIsNoop(t *testing.T) {
	path, store := writeLog(t, "2024-01-01 aa\n2024-01-02 bb\n")

	state, err := Build(context.Background(), path, store, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Truncation is not detected as an error; it looks like "nothing new".
	if err := os.WriteFile(path, []byte("2024-01-01 aa\n"), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	_, added, err := Update(context.Background(), path, state, store, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}
}

func TestUpdateMatchesFullBuild(t *testing.T) {
	path, store := writeLog(t, "2024-01-01 aa\n2024-01-01 bb\n")

	state, err := Build(context.Background(), path, store, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Append in several batches, updating after each.
	batches := []string{
		"2024-01-02 cc\n",
		"2024-01-02 dd\n2024-01-03 ee\n",
		"2024-01-03 ff\n2024-01-04 gg\n2024-01-05 hh\n",
	}
	for _, batch := range batches {
		appendLog(t, path, batch)
		state, _, err = Update(context.Background(), path, state, store, nil)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	// A fresh build over the final file must agree with the
	// incrementally maintained index.
	freshDir := t.TempDir()
	freshStore := Store{
		EntriesPath:   filepath.Join(freshDir, DefaultEntriesName),
		WatermarkPath: filepath.Join(freshDir, DefaultWatermarkName),
	}
	fresh, err := Build(context.Background(), path, freshStore, nil)
	if err != nil {
		t.Fatalf("fresh build: %v", err)
	}

	if !reflect.DeepEqual(state.Entries(), fresh.Entries()) {
		t.Fatalf("incremental entries = %v, full build = %v", state.Entries(), fresh.Entries())
	}
	if state.Watermark() != fresh.Watermark() {
		t.Fatalf("incremental watermark = %d, full build = %d", state.Watermark(), fresh.Watermark())
	}
}

func TestNextAfter(t *testing.T) {
	state := NewState()
	state.Add("2024-01-01", 0)
	state.Add("2024-01-03", 100)
	state.Add("2024-01-05", 200)

	next, ok := state.NextAfter("2024-01-01")
	if !ok || next.Date != "2024-01-03" {
		t.Fatalf("next after 2024-01-01 = (%v, %v), want 2024-01-03", next, ok)
	}

	// Works for dates between entries too.
	next, ok = state.NextAfter("2024-01-04")
	if !ok || next.Date != "2024-01-05" {
		t.Fatalf("next after 2024-01-04 = (%v, %v), want 2024-01-05", next, ok)
	}

	if _, ok := state.NextAfter("2024-01-05"); ok {
		t.Fatal("no date after the last entry")
	}
}
