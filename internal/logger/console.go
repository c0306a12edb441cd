package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/normalize"
	"github.com/mattn/go-isatty"
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns false when NO_COLOR is set.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || (f != os.Stdout && f != os.Stderr) {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch level {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogLoadReport logs how many rows were read and kept at INFO level, and each
// non-zero drop counter as a warning.
func (cl *ConsoleLogger) LogLoadReport(report normalize.Report) {
	cl.LogInfo(fmt.Sprintf("Loaded %d event(s) from %d row(s)", report.RowsKept, report.RowsRead))
	for _, line := range loadReportLines(report) {
		cl.LogWarn(line)
	}
}

// LogDiagnostics logs reconstruction anomaly counts at DEBUG level. Orphan closes
// are additionally surfaced as a warning since they indicate lost open events.
func (cl *ConsoleLogger) LogDiagnostics(diag interval.Diagnostics) {
	cl.LogDebug(diagnosticsLine(diag))
	if diag.OrphanCloses > 0 {
		cl.LogWarn(fmt.Sprintf("Ignored %d close event(s) with no open window", diag.OrphanCloses))
	}
}

// LogProgress logs reconstruction progress at INFO level.
// Format: "[HH:MM:SS] Progress: [=====     ] 5/10 users (50%)"
func (cl *ConsoleLogger) LogProgress(done, total int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	bar := ProgressBar{Total: total, Unit: "users", Color: cl.colorOutput}
	cl.writer.Write([]byte(fmt.Sprintf("[%s] Progress: %s\n", timestamp(), bar.Render(done))))
}

// LogRunSummary logs the run summary at INFO level.
func (cl *ConsoleLogger) LogRunSummary(summary RunSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var b strings.Builder

	labelColor := color.New(color.FgCyan)
	valueColor := color.New(color.FgWhite)
	metric := func(label string, value interface{}) string {
		if !cl.colorOutput {
			return fmt.Sprintf("%s: %v", label, value)
		}
		return fmt.Sprintf("%s: %s", labelColor.Sprint(label), valueColor.Sprint(value))
	}
	header := "=== Run Summary ==="
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}

	fmt.Fprintf(&b, "[%s] %s\n", ts, header)
	fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Run", summary.RunID))
	fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Source", summary.Source))
	fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Users", summary.Users))
	fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Intervals", summary.Intervals))
	fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Censored", summary.Censored))
	if summary.Comparison != "" {
		fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Auto vs manual", summary.Comparison))
	}
	fmt.Fprintf(&b, "[%s] %s\n", ts, metric("Duration", formatDuration(summary.Duration)))
	for _, f := range summary.Files {
		fmt.Fprintf(&b, "[%s]   - %s\n", ts, f)
	}

	cl.writer.Write([]byte(b.String()))
}
