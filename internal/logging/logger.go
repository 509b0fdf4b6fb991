// Package logging sets up the structured run log.
//
// Each stagehand invocation gets a run ID and appends JSON log lines to
// stagehand.log in the state directory. The log is for post-mortem of
// unattended auto runs; terminal output stays with internal/output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileName is the log file name inside the state directory.
const FileName = "stagehand.log"

// Logger wraps slog with the run ID attached and owns the log file handle.
type Logger struct {
	*slog.Logger

	runID  string
	closer io.Closer
}

// New opens (or creates) the run log under dir and returns a Logger with a
// fresh run ID. If the file cannot be opened the logger falls back to
// stderr rather than failing the run.
func New(dir string, verbose bool) *Logger {
	runID := uuid.NewString()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	var closer io.Closer

	if err := os.MkdirAll(dir, 0o755); err == nil {
		path := filepath.Join(dir, FileName)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = f
			closer = f
		} else {
			fmt.Fprintf(os.Stderr, "stagehand: cannot open log file %s: %v\n", path, err)
		}
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("run_id", runID)

	return &Logger{Logger: logger, runID: runID, closer: closer}
}

// NewWithWriter builds a Logger writing to w, for tests.
func NewWithWriter(w io.Writer, verbose bool) *Logger {
	runID := uuid.NewString()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger: slog.New(handler).With("run_id", runID),
		runID:  runID,
	}
}

// RunID returns the identifier attached to every line of this run.
func (l *Logger) RunID() string {
	return l.runID
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
