package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/harrison/toolwindow/internal/stats"
)

// IntervalsCSV renders one row per interval. Absent close times and durations are empty cells.
func IntervalsCSV(intervals []models.Interval) ([]byte, error) {
	rows := [][]string{{"user_id", "open_ts", "close_ts", "open_type", "censored", "implicit_close", "duration_ms"}}
	for _, iv := range intervals {
		rows = append(rows, []string{
			iv.UserID,
			strconv.FormatInt(iv.OpenTS, 10),
			optionalInt(iv.CloseTS),
			string(iv.OpenType),
			strconv.FormatBool(iv.Censored),
			strconv.FormatBool(iv.ImplicitClose),
			optionalInt(iv.DurationMS),
		})
	}
	return writeCSV(rows)
}

// SummaryCSV renders the per-open-type duration statistics in milliseconds
func SummaryCSV(summaries []stats.OpenTypeSummary) ([]byte, error) {
	rows := [][]string{{"open_type", "n", "mean_ms", "median_ms", "p25_ms", "p75_ms", "p90_ms", "std_ms"}}
	for _, s := range summaries {
		rows = append(rows, []string{
			string(s.OpenType),
			strconv.Itoa(s.N),
			formatFloat(s.Mean),
			formatFloat(s.Median),
			formatFloat(s.P25),
			formatFloat(s.P75),
			formatFloat(s.P90),
			formatFloat(s.Std),
		})
	}
	return writeCSV(rows)
}

// TransitionsCSV renders the implicit-close transition matrix with prior types as
// rows and next types as columns. Missing pairs are 0.
func TransitionsCSV(m interval.TransitionMatrix) ([]byte, error) {
	columns := m.Columns()
	header := []string{"open_type"}
	for _, next := range columns {
		header = append(header, string(next))
	}

	rows := [][]string{header}
	for _, prior := range m.Rows() {
		row := []string{string(prior)}
		for _, next := range columns {
			row = append(row, strconv.Itoa(m.Count(prior, next)))
		}
		rows = append(rows, row)
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// formatFloat writes NaN as an empty cell
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
