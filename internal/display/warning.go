package display

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/harrison/toolwindow/internal/normalize"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Details    []string // Itemized causes (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("\x1b[33m")
	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	for i, detail := range w.Details {
		fmt.Fprintf(&b, "      %d. %s\n", i+1, detail)
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	b.WriteString("\x1b[0m")

	fmt.Fprint(out, b.String())
}

// WarnDroppedRows builds a warning describing the rows dropped while loading source.
// Returns false when nothing was dropped.
func WarnDroppedRows(source string, report normalize.Report) (Warning, bool) {
	dropped := report.Dropped()
	if dropped == 0 {
		return Warning{}, false
	}

	var details []string
	add := func(n int, what string) {
		if n > 0 {
			details = append(details, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(report.InvalidTimestamp, "invalid timestamp")
	add(report.UnknownEvent, "unknown event value")
	add(report.MissingOpenType, "opened without manual/auto open_type")
	add(report.Malformed, "malformed row")

	w := Warning{
		Title:   "Rows Dropped",
		Message: fmt.Sprintf("%d of %d rows in %s could not be normalized", dropped, report.RowsRead, filepath.Base(source)),
		Details: details,
	}
	if report.RowsKept == 0 {
		w.Suggestion = "No usable events remain; check the header names and the event/open_type values"
	}
	return w, true
}
