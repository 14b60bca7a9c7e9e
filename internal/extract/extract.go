package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"logslice/internal/logging"
	"logslice/internal/scan"
)

// DefaultWorkers is the number of parallel chunk scanners used when the
// caller does not specify one.
const DefaultWorkers = 4

// Extractor scans a resolved byte range with a fixed-size pool of
// workers, one contiguous chunk per worker.
type Extractor struct {
	workers int
	logger  *slog.Logger
}

// NewExtractor returns an Extractor with the given worker count.
// Counts below one fall back to DefaultWorkers.
func NewExtractor(workers int, logger *slog.Logger) *Extractor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Extractor{
		workers: workers,
		logger:  logging.Default(logger),
	}
}

// chunk is an immutable work descriptor for one worker: an absolute,
// not necessarily line-aligned byte range of the log file.
type chunk struct {
	start int64
	end   int64
}

// Extract returns every line in [start, end) whose date key equals date,
// in file order. An empty or inverted range yields an empty result, not
// an error.
//
// The range is split into W contiguous chunks of total/W bytes, the last
// extended to absorb the remainder. Each worker opens its own read
// handle; there is no shared state during the scan. Results are
// concatenated in chunk order, not completion order, so output ordering
// is deterministic regardless of scheduling.
func (e *Extractor) Extract(ctx context.Context, logPath, date string, start, end int64) ([]string, error) {
	total := end - start
	if total <= 0 {
		return nil, nil
	}

	workers := e.workers
	chunkSize := total / int64(workers)
	chunks := make([]chunk, workers)
	for i := range chunks {
		chunks[i].start = start + int64(i)*chunkSize
		chunks[i].end = start + int64(i+1)*chunkSize
	}
	chunks[workers-1].end = end

	e.logger.Debug("extracting",
		"log", logPath,
		"date", date,
		"start", start,
		"end", end,
		"workers", workers)

	results := make([][]string, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			lines, err := scanChunk(gctx, logPath, date, c, i == 0)
			if err != nil {
				return fmt.Errorf("chunk %d [%d, %d): %w", i, c.start, c.end, err)
			}
			results[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	for _, lines := range results {
		out = append(out, lines...)
	}
	return out, nil
}

// scanChunk collects the matching lines owned by one chunk.
//
// Boundary reconciliation: a chunk owns exactly the lines that start
// inside [start, end). A line that starts inside the chunk but
// terminates beyond end is still read to completion here; the
// neighboring chunk sees only its truncated tail and discards it. A
// chunk whose start falls mid-line discards its first read, since those
// bytes belong to a line owned by a previous chunk. Whether start is
// mid-line is decided by the byte just before it: a newline there means
// start is a line start, owned by this chunk and not discarded. The
// first chunk skips the probe entirely; its start came from the index
// (or offset 0) and is line-aligned by construction.
func scanChunk(ctx context.Context, logPath, date string, c chunk, first bool) ([]string, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	discard := false
	if !first && c.start > 0 {
		var prev [1]byte
		if _, err := f.ReadAt(prev[:], c.start-1); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil // chunk starts beyond EOF
			}
			return nil, fmt.Errorf("probe boundary: %w", err)
		}
		discard = prev[0] != '\n'
	}

	if _, err := f.Seek(c.start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	sc := scan.NewScanner(f, c.start)

	if discard {
		if _, err := sc.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("skip partial line: %w", err)
		}
	}

	var out []string
	n := 0
	for sc.Offset() < c.end {
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++

		line, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line: %w", err)
		}
		if text, ok := matchLine(line.Raw, date); ok {
			out = append(out, text)
		}
	}
	return out, nil
}

// matchLine decodes a raw line leniently and reports whether its date
// key equals the target date.
func matchLine(raw []byte, date string) (string, bool) {
	key, ok := scan.DateKey(raw)
	if !ok || key != date {
		return "", false
	}
	text, _ := scan.Decode(raw)
	return text, true
}
