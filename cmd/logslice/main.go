// Command logslice extracts all records for a calendar date from a
// large, append-only log file. It maintains a persisted date→offset
// index so a query scans only the target date's byte range, in parallel.
//
// Logging:
//   - Base logger is created here with output level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"logslice/internal/extract"
	"logslice/internal/logindex"
	"logslice/internal/scan"
	"logslice/internal/sink"
	"logslice/internal/watch"
)

var version = "dev"

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	rootCmd := &cobra.Command{
		Use:   "logslice",
		Short: "Extract per-date records from a large append-only log file",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	rootCmd.PersistentFlags().String("index", "", "index entries file (default: log_index.txt beside the log)")
	rootCmd.PersistentFlags().String("watermark", "", "watermark file (default: index_info.txt beside the log)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	indexCmd := &cobra.Command{
		Use:   "index <logfile>",
		Short: "Build the date index from scratch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			_, err := logindex.Build(ctx, args[0], storeFromFlags(cmd, args[0]), logger)
			return err
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update <logfile>",
		Short: "Index bytes appended since the last build or update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			store := storeFromFlags(cmd, args[0])
			state, err := store.Load()
			if err != nil {
				return err
			}
			_, _, err = logindex.Update(ctx, args[0], state, store, logger)
			return err
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract <logfile> <YYYY-MM-DD>",
		Short: "Extract all lines for one date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			workers, _ := cmd.Flags().GetInt("workers")
			compress, _ := cmd.Flags().GetBool("compress")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return runExtract(ctx, logger, args[0], args[1], storeFromFlags(cmd, args[0]), sink.Sink{
				Dir:      outDir,
				Compress: compress,
			}, workers)
		},
	}

	extractCmd.Flags().String("out", "output", "output directory")
	extractCmd.Flags().Int("workers", extract.DefaultWorkers, "number of parallel chunk scanners")
	extractCmd.Flags().Bool("compress", false, "zstd-compress the output file")

	watchCmd := &cobra.Command{
		Use:   "watch <logfile>",
		Short: "Keep the index current while the log file grows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			err := watch.New(args[0], storeFromFlags(cmd, args[0]), interval, logger).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	watchCmd.Flags().Duration("interval", watch.DefaultPollInterval, "poll interval fallback")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(indexCmd, updateCmd, extractCmd, watchCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// storeFromFlags resolves the index artifact paths, defaulting to files
// beside the log.
func storeFromFlags(cmd *cobra.Command, logPath string) logindex.Store {
	store := logindex.StoreFor(logPath)
	if p, _ := cmd.Flags().GetString("index"); p != "" {
		store.EntriesPath = p
	}
	if p, _ := cmd.Flags().GetString("watermark"); p != "" {
		store.WatermarkPath = p
	}
	return store
}

// runExtract ensures the index is current, resolves the date's byte
// range, scans it in parallel, and writes the output file. A date with
// no index entry or an empty range is reported but is not an error;
// I/O failures are.
func runExtract(ctx context.Context, logger *slog.Logger, logPath, date string, store logindex.Store, out sink.Sink, workers int) error {
	if len(date) != scan.DateKeyLen {
		return fmt.Errorf("target date %q is not in YYYY-MM-DD form", date)
	}

	state, err := ensureIndex(ctx, logger, logPath, store)
	if err != nil {
		return err
	}

	info, err := os.Stat(logPath)
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}

	started := time.Now()
	start, end, err := extract.Resolve(state, date, info.Size())
	if errors.Is(err, extract.ErrDateNotFound) {
		logger.Warn("target date not found in index", "date", date)
		return nil
	}
	if err != nil {
		return err
	}

	lines, err := extract.NewExtractor(workers, logger).Extract(ctx, logPath, date, start, end)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		logger.Warn("no data for target date", "date", date, "start", start, "end", end)
		return nil
	}

	path, err := out.Write(date, lines)
	if err != nil {
		return err
	}

	logger.Info("extraction complete",
		"date", date,
		"lines", len(lines),
		"output", path,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// ensureIndex builds the index when no artifacts exist, otherwise loads
// it and applies an incremental update.
func ensureIndex(ctx context.Context, logger *slog.Logger, logPath string, store logindex.Store) (*logindex.State, error) {
	if !store.Exists() {
		logger.Info("no index artifacts found, building", "log", logPath)
		return logindex.Build(ctx, logPath, store, logger)
	}

	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	state, _, err = logindex.Update(ctx, logPath, state, store, logger)
	if err != nil {
		return nil, err
	}
	return state, nil
}
