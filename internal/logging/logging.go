// Package logging provides structured logging for mfboost: a slog.Logger
// writing to a daily-rolled file (retaining a bounded number of days)
// plus, optionally, stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// MaxRetainedLogFiles bounds how many daily log files are kept; older
// files are pruned on Setup.
const MaxRetainedLogFiles = 5

const logFilePrefix = "mfboost_"

// Setup creates a slog.Logger that writes to the current day's file under
// logDir (appending when it already exists), then prunes older files
// beyond MaxRetainedLogFiles. When
// echoStderr is true, records are also written to stderr. Returns a
// close function that must be called to flush and release the file
// handle.
func Setup(logDir string, verbose, echoStderr bool) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("logging: creating log directory %s: %w", logDir, err)
	}

	filename := fmt.Sprintf("%s%s.log", logFilePrefix, time.Now().Format("2006-01-02"))
	path := filepath.Join(logDir, filename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: creating log file %s: %w", path, err)
	}

	// Prune after the day's file exists so it counts toward the limit.
	if err := pruneOldLogs(logDir); err != nil {
		// Pruning failure is non-fatal: logging still proceeds, just with
		// extra files kept.
		slog.Default().Warn("logging: failed to prune old log files", "error", err)
	}

	var out io.Writer = file
	if echoStderr {
		out = io.MultiWriter(file, os.Stderr)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("log_file", path)
	logger.Info("mfboost logging started", "verbose", verbose)

	return logger, file.Close, nil
}

// pruneOldLogs removes the oldest log files under dir beyond
// MaxRetainedLogFiles, keeping the most recently named ones (the
// timestamped filename sorts lexically by recency).
func pruneOldLogs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(e.Name()) > len(logFilePrefix) && e.Name()[:len(logFilePrefix)] == logFilePrefix {
			names = append(names, e.Name())
		}
	}
	if len(names) <= MaxRetainedLogFiles {
		return nil
	}

	sort.Strings(names)
	toRemove := names[:len(names)-MaxRetainedLogFiles]
	for _, name := range toRemove {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
