// Package plog provides the application-wide logger. Every record is rendered
// as a single `[timestamp] [LEVEL   ] message` line and fanned out to three
// sinks: the process's standard output (unbuffered), the active day's log file
// in the configured log directory, and a bounded in-memory ring consumed by the
// web layer. A failure to write the log file is reported on the console only;
// logging never fails the operation it describes.
package plog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelSuccess sits between INFO and WARNING. It marks the completion of a
// user-visible operation (finished backup, finished sweep).
const LevelSuccess = slog.Level(2)

// RingCapacity is the maximum number of log lines kept in memory for the web
// layer. Older lines are evicted first.
const RingCapacity = 500

const (
	timestampLayout = "2006-01-02 15:04:05"
	dayLayout       = "2006-01-02"
)

// FileNameForDate returns the per-day log file name for the given time,
// e.g. "backup_2026-08-30.log".
func FileNameForDate(t time.Time) string {
	return "backup_" + t.Format(dayLayout) + ".log"
}

// lineHandler is a slog.Handler that renders records in the fixed line format
// and fans them out to console, day file and ring. It holds a mutex so that
// lines from concurrent batch and retention work never interleave. The day
// file is opened, appended and closed per call; no handle is held across calls.
type lineHandler struct {
	mu      sync.Mutex
	console io.Writer
	logDir  string // empty means no file sink
	ring    []string
	level   slog.Level
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	line := formatLine(r)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.logDir != "" {
		if err := appendToFile(filepath.Join(h.logDir, FileNameForDate(r.Time)), line); err != nil {
			fmt.Fprintf(h.console, "[LOG-ERROR] could not write log file: %v\n", err)
		}
	}

	h.ring = append(h.ring, line)
	if len(h.ring) > RingCapacity {
		h.ring = h.ring[len(h.ring)-RingCapacity:]
	}

	fmt.Fprintln(h.console, line)
	return nil
}

// WithAttrs and WithGroup are required by slog.Handler but unused by the
// package-level helpers, which pass attrs per call.
func (h *lineHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(_ string) slog.Handler      { return h }

// formatLine renders a record as `[timestamp] [LEVEL   ] msg key=value ...`.
// The level tag is padded to 8 characters to keep the columns stable.
func formatLine(r slog.Record) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(r.Time.Format(timestampLayout))
	b.WriteString("] [")
	b.WriteString(fmt.Sprintf("%-8s", levelTag(r.Level)))
	b.WriteString("] ")
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	})
	return b.String()
}

func levelTag(l slog.Level) string {
	switch {
	case l == LevelSuccess:
		return "SUCCESS"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func appendToFile(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var handler = &lineHandler{console: os.Stdout, level: slog.LevelInfo}
var defaultLogger = slog.New(handler)

// Configure attaches the per-day file sink rooted at logDir. Call it once at
// startup, after the log directory has been created.
func Configure(logDir string) {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.logDir = logDir
}

// SetOutput redirects console output, primarily for testing. It also detaches
// the file sink so tests do not scatter log files.
func SetOutput(w io.Writer) {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.console = w
	handler.logDir = ""
	handler.ring = nil
}

// SetLevel sets the minimum level that will be logged.
func SetLevel(l slog.Level) {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.level = l
}

// LevelFromString maps a configured level name to a slog.Level. Unknown names
// fall back to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Recent returns up to n of the most recent log lines, oldest first.
func Recent(n int) []string {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if n <= 0 || len(handler.ring) == 0 {
		return []string{}
	}
	start := len(handler.ring) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(handler.ring)-start)
	copy(out, handler.ring[start:])
	return out
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Success logs the completion of a user-visible operation.
func Success(msg string, args ...any) {
	defaultLogger.Log(context.Background(), LevelSuccess, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}
