// Package logging provides the structured logger used by the search engine.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with search-specific fields.
// Field names are consistent across packages: run, file, thread, scan, charge.
type Logger struct {
	*slog.Logger
}

// New creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewText creates a Logger writing human-readable text to w.
func NewText(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON creates a Logger writing JSON lines to w.
func NewJSON(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Nop creates a Logger that discards all output.
func Nop() *Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// ParseLevel converts a verbosity name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid verbosity %q (want debug, info, warn or error)", s)
	}
}

// WithRun tags every record with a run id.
func (l *Logger) WithRun(id string) *Logger {
	return &Logger{Logger: l.Logger.With("run", id)}
}

// WithFile adds the spectrum file being searched.
func (l *Logger) WithFile(path string) *Logger {
	return &Logger{Logger: l.Logger.With("file", path)}
}

// WithThread adds the worker number.
func (l *Logger) WithThread(thread int) *Logger {
	return &Logger{Logger: l.Logger.With("thread", thread)}
}

// LogProgress logs how many spectrum-charge pairs have been searched.
func (l *Logger) LogProgress(ctx context.Context, done, total int) {
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(done) / float64(total)
	}
	l.InfoContext(ctx, "search progress",
		"done", done,
		"total", total,
		"percent", fmt.Sprintf("%.1f", pct),
	)
}

// LogEmptySpectrum warns about a spectrum-charge pair left without peaks
// after preprocessing.
func (l *Logger) LogEmptySpectrum(ctx context.Context, scan, charge int) {
	l.WarnContext(ctx, "no peaks retained after preprocessing",
		"scan", scan,
		"charge", charge,
	)
}

// LogNoCandidates logs a precursor window that matched no peptides.
func (l *Logger) LogNoCandidates(ctx context.Context, scan, charge int, window string) {
	l.InfoContext(ctx, "no candidate peptides in window",
		"scan", scan,
		"charge", charge,
		"window", window,
	)
}

// LogThreadPeaks logs the peak counters of one worker at the end of a file.
// A worker that saw no peaks, or kept none, is reported at info level.
func (l *Logger) LogThreadPeaks(ctx context.Context, thread, retained, rangeSkipped, precursorSkipped, isotopeSkipped int) {
	attrs := []any{
		"thread", thread,
		"retained", retained,
		"range_skipped", rangeSkipped,
		"precursor_skipped", precursorSkipped,
		"isotope_skipped", isotopeSkipped,
	}
	switch {
	case retained+rangeSkipped+precursorSkipped+isotopeSkipped == 0:
		l.InfoContext(ctx, "no peaks found", attrs...)
	case retained == 0:
		l.InfoContext(ctx, "no peaks retained", attrs...)
	default:
		l.DebugContext(ctx, "thread peak counts", attrs...)
	}
}

// LogFileDone logs the summary of one searched file.
func (l *Logger) LogFileDone(ctx context.Context, path string, pairs, candidates int64) {
	avg := 0.0
	if pairs > 0 {
		avg = float64(candidates) / float64(pairs)
	}
	l.InfoContext(ctx, "file searched",
		"file", path,
		"spectrum_charges", pairs,
		"candidates", candidates,
		"avg_candidates", fmt.Sprintf("%.2f", avg),
	)
}
