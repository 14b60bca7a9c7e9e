package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestWritePlain(t *testing.T) {
	s := Sink{Dir: filepath.Join(t.TempDir(), "out")}

	lines := []string{"2024-01-01 aa\n", "2024-01-01 bb\n"}
	path, err := s.Write("2024-01-01", lines)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != filepath.Join(s.Dir, "output_2024-01-01.txt") {
		t.Fatalf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "2024-01-01 aa\n2024-01-01 bb\n"
	if string(data) != want {
		t.Fatalf("output = %q, want %q", data, want)
	}
}

func TestWriteCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := Sink{Dir: dir}

	if _, err := s.Write("2024-01-01", []string{"2024-01-01 aa\n"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestWriteCompressed(t *testing.T) {
	s := Sink{Dir: t.TempDir(), Compress: true}

	lines := []string{"2024-01-01 aa\n", "2024-01-01 bb\n"}
	path, err := s.Write("2024-01-01", lines)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Ext(path) != ".zst" {
		t.Fatalf("path = %q, want .zst suffix", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(dec); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	want := "2024-01-01 aa\n2024-01-01 bb\n"
	if buf.String() != want {
		t.Fatalf("decompressed = %q, want %q", buf.String(), want)
	}
}

func TestWriteNoTempFileLeftBehind(t *testing.T) {
	s := Sink{Dir: t.TempDir()}

	if _, err := s.Write("2024-01-01", []string{"2024-01-01 aa\n"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want 1", len(entries))
	}
	if entries[0].Name() != "output_2024-01-01.txt" {
		t.Fatalf("entry = %q", entries[0].Name())
	}
}
