// Package normalize parses raw tool window CSV logs into ordered, typed events.
//
// Invalid rows are dropped and counted rather than reported as errors; the drop
// counts are returned to the caller in a Report so nothing is printed here.
package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/toolwindow/internal/models"
)

// Column names recognized in the CSV header
const (
	ColumnUserID    = "user_id"
	ColumnTimestamp = "timestamp"
	ColumnEvent     = "event"
	ColumnEventID   = "event_id"
	ColumnOpenType  = "open_type"
)

// ErrMissingColumn is returned when a required column is absent from the header
var ErrMissingColumn = errors.New("missing required column")

// Report counts what happened to the raw rows during normalization
type Report struct {
	RowsRead         int `json:"rows_read"`
	RowsKept         int `json:"rows_kept"`
	InvalidTimestamp int `json:"invalid_timestamp"`
	UnknownEvent     int `json:"unknown_event"`
	MissingOpenType  int `json:"missing_open_type"`
	Malformed        int `json:"malformed"`
}

// Dropped returns the total number of rows dropped
func (r Report) Dropped() int {
	return r.InvalidTimestamp + r.UnknownEvent + r.MissingOpenType + r.Malformed
}

// Table is the normalized event table, sorted by (user_id, timestamp, close-before-open)
type Table struct {
	Events []models.Event
	Report Report
}

// Users returns the number of distinct users in the table
func (t *Table) Users() int {
	seen := make(map[string]struct{})
	for _, ev := range t.Events {
		seen[ev.UserID] = struct{}{}
	}
	return len(seen)
}

type columns struct {
	user      int
	timestamp int
	event     int
	openType  int // -1 when absent
}

// Load reads and normalizes the CSV file at path
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}

// Parse reads a header-first CSV stream and normalizes it
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are handled per row, not fatal
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	table := &Table{Events: []models.Event{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				table.Report.RowsRead++
				table.Report.Malformed++
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		table.Report.RowsRead++

		if len(record) > len(header) {
			table.Report.Malformed++
			continue
		}
		// short rows are padded with empty cells, e.g. a close without open_type
		for len(record) < len(header) {
			record = append(record, "")
		}

		ev, ok := normalizeRow(record, cols, &table.Report)
		if !ok {
			continue
		}
		table.Events = append(table.Events, ev)
	}

	Sort(table.Events)
	table.Report.RowsKept = len(table.Events)

	return table, nil
}

// resolveColumns maps header names onto column indexes.
// "event" is preferred over "event_id" when both are present.
func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := columns{openType: -1}
	var ok bool
	var missing []string

	if cols.user, ok = index[ColumnUserID]; !ok {
		missing = append(missing, ColumnUserID)
	}
	if cols.timestamp, ok = index[ColumnTimestamp]; !ok {
		missing = append(missing, ColumnTimestamp)
	}
	if cols.event, ok = index[ColumnEvent]; !ok {
		if cols.event, ok = index[ColumnEventID]; !ok {
			missing = append(missing, ColumnEvent+"|"+ColumnEventID)
		}
	}
	if i, ok := index[ColumnOpenType]; ok {
		cols.openType = i
	}

	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalizeRow(record []string, cols columns, report *Report) (models.Event, bool) {
	userID := strings.TrimSpace(record[cols.user])

	ts, ok := ParseTimestamp(record[cols.timestamp])
	if !ok {
		report.InvalidTimestamp++
		return models.Event{}, false
	}

	kind, ok := models.ParseEventKind(record[cols.event])
	if !ok {
		report.UnknownEvent++
		return models.Event{}, false
	}

	if kind == models.EventClosed {
		return models.NewClosed(userID, ts), true
	}

	ot := models.OpenTypeNone
	if cols.openType >= 0 {
		ot = models.ParseOpenType(record[cols.openType])
	}
	if !ot.Valid() {
		report.MissingOpenType++
		return models.Event{}, false
	}
	return models.NewOpened(userID, ts, ot), true
}

// ParseTimestamp coerces a raw value to epoch milliseconds. Integers parse directly;
// decimal or exponent notation is truncated toward zero. Empty, NaN and infinite
// values are rejected.
func ParseTimestamp(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Sort orders events by (user_id, timestamp, close-before-open). The sort is
// stable, so duplicate events keep their log order.
func Sort(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return models.Less(a, b)
	})
}
