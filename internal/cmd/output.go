package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/report"
	"github.com/harrison/toolwindow/internal/stats"
)

// printAnalysis writes the human-readable result of an analysis run
func printAnalysis(w io.Writer, rep *report.Report) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	cyan.Fprintf(w, "\n=== Tool Window Intervals: %s ===\n\n", rep.Source)

	fmt.Fprintf(w, "  Events: %d (%d row(s) dropped)\n", rep.Events, rep.Load.Dropped())
	fmt.Fprintf(w, "  Users: %d\n", rep.Users)
	fmt.Fprintf(w, "  Intervals: %d (%d completed, %d censored)\n",
		len(rep.Intervals), rep.Completed(), rep.Diagnostics.Censored)
	fmt.Fprintf(w, "  Implicit closes: %d\n", rep.Diagnostics.ImplicitCloses)
	if rep.Diagnostics.OrphanCloses > 0 || rep.Diagnostics.DegenerateDropped > 0 {
		yellow.Fprintf(w, "  Orphan closes ignored: %d, zero-length intervals dropped: %d\n",
			rep.Diagnostics.OrphanCloses, rep.Diagnostics.DegenerateDropped)
	}

	fmt.Fprintf(w, "\n")
	cyan.Fprintf(w, "Duration by open type (ms):\n")
	if len(rep.Summaries) == 0 {
		yellow.Fprintf(w, "  No completed intervals with valid open_type.\n")
	} else {
		fmt.Fprint(w, formatSummaryTable(rep.Summaries))
	}

	fmt.Fprintf(w, "\n")
	cyan.Fprintf(w, "Auto vs manual (Welch t-test on log duration):\n")
	if wr := rep.Welch; wr != nil {
		fmt.Fprintf(w, "  t = %.3f, p = %.3e\n", wr.T, wr.P)
		fmt.Fprintf(w, "  Estimated mean(auto) / mean(manual) ≈ %.2fx\n", wr.Ratio)
	} else {
		fmt.Fprintf(w, "  %s\n", rep.ComparisonLine())
	}

	fmt.Fprintf(w, "\n")
	cyan.Fprintf(w, "Implicit-close transitions (prior -> next):\n")
	if rep.Transitions.Total() == 0 {
		fmt.Fprintf(w, "  none\n")
	} else {
		fmt.Fprint(w, formatTransitionTable(rep.Transitions))
	}
}

// formatSummaryTable renders summaries as a fixed-width table
func formatSummaryTable(summaries []stats.OpenTypeSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %-10s %6s %10s %10s %10s %10s %10s %10s\n",
		"open_type", "n", "mean", "median", "p25", "p75", "p90", "std")
	for _, s := range summaries {
		fmt.Fprintf(&b, "  %-10s %6d %10s %10s %10s %10s %10s %10s\n",
			s.OpenType, s.N,
			tableFloat(s.Mean), tableFloat(s.Median), tableFloat(s.P25),
			tableFloat(s.P75), tableFloat(s.P90), tableFloat(s.Std))
	}
	return b.String()
}

// formatTransitionTable renders the matrix with prior types as rows
func formatTransitionTable(m interval.TransitionMatrix) string {
	columns := m.Columns()
	var b strings.Builder
	fmt.Fprintf(&b, "  %-10s", "")
	for _, next := range columns {
		fmt.Fprintf(&b, " %8s", next)
	}
	b.WriteString("\n")
	for _, prior := range m.Rows() {
		fmt.Fprintf(&b, "  %-10s", prior)
		for _, next := range columns {
			fmt.Fprintf(&b, " %8d", m.Count(prior, next))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func tableFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}
