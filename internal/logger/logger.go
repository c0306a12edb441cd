// Package logger provides logging implementations for toolwindow analysis runs.
//
// Loggers report load statistics, reconstruction diagnostics, progress and the
// final run summary. Implementations are thread-safe and write to the console,
// to per-run log files, or to several destinations at once.
package logger

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/normalize"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger receives the messages and domain events of one analysis run
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogLoadReport(report normalize.Report)
	LogDiagnostics(diag interval.Diagnostics)
	LogProgress(done, total int)
	LogRunSummary(summary RunSummary)
}

// RunSummary describes a finished analysis run
type RunSummary struct {
	RunID      string
	Source     string
	Users      int
	Intervals  int
	Censored   int
	Comparison string // one-line auto vs manual result
	Files      []string
	Duration   time.Duration
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// IsValidLevel reports whether level names a known log level
func IsValidLevel(level string) bool {
	normalized := strings.ToLower(strings.TrimSpace(level))
	return normalized != "" && normalizeLogLevel(normalized) == normalized
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Sub-second durations keep millisecond precision.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		minutes := remainder / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// loadReportLines renders the drop counters of a load report, one line per
// non-zero counter.
func loadReportLines(r normalize.Report) []string {
	var lines []string
	add := func(n int, what string) {
		if n > 0 {
			lines = append(lines, fmt.Sprintf("Dropped %d row(s): %s", n, what))
		}
	}
	add(r.InvalidTimestamp, "invalid timestamp")
	add(r.UnknownEvent, "unknown event value")
	add(r.MissingOpenType, "opened without manual/auto open_type")
	add(r.Malformed, "malformed row")
	return lines
}

func diagnosticsLine(d interval.Diagnostics) string {
	return fmt.Sprintf("Reconstruction: %d orphan close(s) ignored, %d zero-length interval(s) dropped, %d implicit close(s), %d censored",
		d.OrphanCloses, d.DegenerateDropped, d.ImplicitCloses, d.Censored)
}

// MultiLogger fans every call out to a list of loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	ml := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			ml.loggers = append(ml.loggers, l)
		}
	}
	return ml
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogLoadReport(report normalize.Report) {
	for _, l := range m.loggers {
		l.LogLoadReport(report)
	}
}

func (m *MultiLogger) LogDiagnostics(diag interval.Diagnostics) {
	for _, l := range m.loggers {
		l.LogDiagnostics(diag)
	}
}

func (m *MultiLogger) LogProgress(done, total int) {
	for _, l := range m.loggers {
		l.LogProgress(done, total)
	}
}

func (m *MultiLogger) LogRunSummary(summary RunSummary) {
	for _, l := range m.loggers {
		l.LogRunSummary(summary)
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogDebug(message string)                  {}
func (n *NoOpLogger) LogInfo(message string)                   {}
func (n *NoOpLogger) LogWarn(message string)                   {}
func (n *NoOpLogger) LogError(message string)                  {}
func (n *NoOpLogger) LogLoadReport(report normalize.Report)    {}
func (n *NoOpLogger) LogDiagnostics(diag interval.Diagnostics) {}
func (n *NoOpLogger) LogProgress(done, total int)              {}
func (n *NoOpLogger) LogRunSummary(summary RunSummary)         {}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
)
