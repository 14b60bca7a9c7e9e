// Package watch keeps a log file's date index current while the file is
// being appended to, combining fsnotify write events with a poll ticker
// fallback for filesystems where notifications are unreliable.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"logslice/internal/logging"
	"logslice/internal/logindex"
)

// DefaultPollInterval is the ticker fallback period.
const DefaultPollInterval = 10 * time.Second

// Watcher runs incremental index updates whenever the log file grows.
type Watcher struct {
	logPath      string
	store        logindex.Store
	pollInterval time.Duration
	logger       *slog.Logger
}

// New returns a Watcher for the given log file and index store.
// A non-positive interval falls back to DefaultPollInterval.
func New(logPath string, store logindex.Store, pollInterval time.Duration, logger *slog.Logger) *Watcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Watcher{
		logPath:      logPath,
		store:        store,
		pollInterval: pollInterval,
		logger:       logging.Default(logger),
	}
}

// Run blocks until ctx is cancelled. It builds the index if no artifacts
// exist yet, then applies an incremental update on every write event for
// the log file and on every poll tick. Update failures are logged and
// retried on the next trigger rather than stopping the watch.
func (w *Watcher) Run(ctx context.Context) error {
	state, err := w.initialState(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory: watching the file directly breaks on
	// rename-based rotation and on editors that replace the inode.
	if err := watcher.Add(filepath.Dir(w.logPath)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("watching log file", "log", w.logPath, "poll_interval", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) && filepath.Clean(event.Name) == filepath.Clean(w.logPath) {
				state = w.update(ctx, state)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)

		case <-ticker.C:
			state = w.update(ctx, state)
		}
	}
}

// initialState loads the existing index or builds one from scratch.
func (w *Watcher) initialState(ctx context.Context) (*logindex.State, error) {
	if !w.store.Exists() {
		w.logger.Info("no index artifacts found, building", "log", w.logPath)
		return logindex.Build(ctx, w.logPath, w.store, w.logger)
	}
	state, err := w.store.Load()
	if err != nil {
		return nil, err
	}
	state, _, err = logindex.Update(ctx, w.logPath, state, w.store, w.logger)
	return state, err
}

// update applies one incremental index update, keeping the previous
// state on failure.
func (w *Watcher) update(ctx context.Context, state *logindex.State) *logindex.State {
	updated, _, err := logindex.Update(ctx, w.logPath, state, w.store, w.logger)
	if err != nil {
		w.logger.Warn("index update failed", "log", w.logPath, "error", err)
		return state
	}
	return updated
}
