package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/harrison/toolwindow/internal/normalize"
)

// Exporter defines the interface for rendering a report as a document
type Exporter interface {
	Export(r *Report) (string, error)
}

// JSONExporter exports a report in JSON format
type JSONExporter struct {
	Pretty        bool // Enable pretty printing with indentation
	WithIntervals bool // Include every interval, not only the aggregates
}

type summaryDoc struct {
	OpenType models.OpenType `json:"open_type"`
	N        int             `json:"n"`
	MeanMS   *float64        `json:"mean_ms"`
	MedianMS *float64        `json:"median_ms"`
	P25MS    *float64        `json:"p25_ms"`
	P75MS    *float64        `json:"p75_ms"`
	P90MS    *float64        `json:"p90_ms"`
	StdMS    *float64        `json:"std_ms"`
}

type welchDoc struct {
	T           *float64 `json:"t"`
	DF          *float64 `json:"df"`
	P           *float64 `json:"p"`
	MeanLogDiff *float64 `json:"mean_log_diff"`
	Ratio       *float64 `json:"ratio"`
	NAuto       int      `json:"n_auto"`
	NManual     int      `json:"n_manual"`
}

type reportDoc struct {
	RunID       string                                      `json:"run_id,omitempty"`
	Source      string                                      `json:"source"`
	GeneratedAt time.Time                                   `json:"generated_at"`
	Load        normalize.Report                            `json:"load"`
	Events      int                                         `json:"events"`
	Users       int                                         `json:"users"`
	Intervals   int                                         `json:"intervals"`
	Completed   int                                         `json:"completed"`
	Diagnostics interval.Diagnostics                        `json:"diagnostics"`
	Summaries   []summaryDoc                                `json:"summary_by_open_type"`
	Welch       *welchDoc                                   `json:"welch"`
	WelchNote   string                                      `json:"welch_note,omitempty"`
	Transitions map[models.OpenType]map[models.OpenType]int `json:"implicit_transitions"`
	Rows        []models.Interval                           `json:"interval_rows,omitempty"`
}

// nullable maps NaN onto a JSON null
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newReportDoc(r *Report, withIntervals bool) reportDoc {
	doc := reportDoc{
		RunID:       r.RunID,
		Source:      r.Source,
		GeneratedAt: r.GeneratedAt,
		Load:        r.Load,
		Events:      r.Events,
		Users:       r.Users,
		Intervals:   len(r.Intervals),
		Completed:   r.Completed(),
		Diagnostics: r.Diagnostics,
		Summaries:   make([]summaryDoc, 0, len(r.Summaries)),
		WelchNote:   r.WelchNote,
		Transitions: make(map[models.OpenType]map[models.OpenType]int),
	}
	for _, s := range r.Summaries {
		doc.Summaries = append(doc.Summaries, summaryDoc{
			OpenType: s.OpenType,
			N:        s.N,
			MeanMS:   nullable(s.Mean),
			MedianMS: nullable(s.Median),
			P25MS:    nullable(s.P25),
			P75MS:    nullable(s.P75),
			P90MS:    nullable(s.P90),
			StdMS:    nullable(s.Std),
		})
	}
	if w := r.Welch; w != nil {
		doc.Welch = &welchDoc{
			T:           nullable(w.T),
			DF:          nullable(w.DF),
			P:           nullable(w.P),
			MeanLogDiff: nullable(w.MeanLogDiff),
			Ratio:       nullable(w.Ratio),
			NAuto:       w.NAuto,
			NManual:     w.NManual,
		}
	}
	for prior, row := range r.Transitions {
		doc.Transitions[prior] = make(map[models.OpenType]int, len(row))
		for next, n := range row {
			doc.Transitions[prior][next] = n
		}
	}
	if withIntervals {
		doc.Rows = r.Intervals
	}
	return doc
}

// Export converts a Report to a JSON string
func (je *JSONExporter) Export(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	doc := newReportDoc(r, je.WithIntervals)

	var data []byte
	var err error
	if je.Pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(data), nil
}

// MarkdownExporter exports a report in Markdown format
type MarkdownExporter struct {
	IncludeTimestamp bool // Include generation timestamp in header
}

// Export converts a Report to a Markdown string
func (me *MarkdownExporter) Export(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	var sb strings.Builder

	sb.WriteString("# Tool Window Usage Report\n\n")
	if me.IncludeTimestamp {
		fmt.Fprintf(&sb, "**Generated**: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	}
	if r.Source != "" {
		fmt.Fprintf(&sb, "**Source**: `%s`\n\n", r.Source)
	}
	if r.RunID != "" {
		fmt.Fprintf(&sb, "**Run**: `%s`\n\n", r.RunID)
	}

	sb.WriteString("## Input\n\n")
	fmt.Fprintf(&sb, "- **Rows Read**: %d\n", r.Load.RowsRead)
	fmt.Fprintf(&sb, "- **Events Kept**: %d\n", r.Load.RowsKept)
	fmt.Fprintf(&sb, "- **Rows Dropped**: %d\n", r.Load.Dropped())
	if r.Load.Dropped() > 0 {
		fmt.Fprintf(&sb, "  - invalid timestamp: %d\n", r.Load.InvalidTimestamp)
		fmt.Fprintf(&sb, "  - unknown event: %d\n", r.Load.UnknownEvent)
		fmt.Fprintf(&sb, "  - missing open_type: %d\n", r.Load.MissingOpenType)
		fmt.Fprintf(&sb, "  - malformed: %d\n", r.Load.Malformed)
	}
	sb.WriteString("\n")

	sb.WriteString("## Reconstruction\n\n")
	fmt.Fprintf(&sb, "- **Users**: %d\n", r.Users)
	fmt.Fprintf(&sb, "- **Intervals**: %d\n", len(r.Intervals))
	fmt.Fprintf(&sb, "- **Completed**: %d\n", r.Completed())
	fmt.Fprintf(&sb, "- **Censored**: %d\n", r.Diagnostics.Censored)
	fmt.Fprintf(&sb, "- **Implicit Closes**: %d\n", r.Diagnostics.ImplicitCloses)
	fmt.Fprintf(&sb, "- **Orphan Closes Ignored**: %d\n", r.Diagnostics.OrphanCloses)
	fmt.Fprintf(&sb, "- **Zero-Length Intervals Dropped**: %d\n", r.Diagnostics.DegenerateDropped)
	sb.WriteString("\n")

	sb.WriteString("## Duration by Open Type\n\n")
	if len(r.Summaries) == 0 {
		sb.WriteString("No completed intervals with a valid open type.\n\n")
	} else {
		sb.WriteString("| Open Type | N | Mean (ms) | Median (ms) | P25 (ms) | P75 (ms) | P90 (ms) | Std (ms) |\n")
		sb.WriteString("|-----------|---|-----------|-------------|----------|----------|----------|----------|\n")
		for _, s := range r.Summaries {
			fmt.Fprintf(&sb, "| %s | %d | %s | %s | %s | %s | %s | %s |\n",
				s.OpenType, s.N,
				markdownFloat(s.Mean), markdownFloat(s.Median), markdownFloat(s.P25),
				markdownFloat(s.P75), markdownFloat(s.P90), markdownFloat(s.Std))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Auto vs Manual\n\n")
	if w := r.Welch; w != nil {
		sb.WriteString("Welch's t-test on log durations (seconds).\n\n")
		fmt.Fprintf(&sb, "- **t**: %s\n", markdownFloat(w.T))
		fmt.Fprintf(&sb, "- **df**: %s\n", markdownFloat(w.DF))
		fmt.Fprintf(&sb, "- **p**: %s\n", markdownSci(w.P))
		fmt.Fprintf(&sb, "- **mean(auto) / mean(manual)**: %sx\n", markdownFloat(w.Ratio))
		fmt.Fprintf(&sb, "- **Samples**: %d auto, %d manual\n", w.NAuto, w.NManual)
	} else {
		fmt.Fprintf(&sb, "%s\n", r.ComparisonLine())
	}
	sb.WriteString("\n")

	sb.WriteString("## Implicit-Close Transitions\n\n")
	if r.Transitions.Total() == 0 {
		sb.WriteString("No implicitly closed intervals.\n")
	} else {
		columns := r.Transitions.Columns()
		sb.WriteString("| Prior \\ Next |")
		for _, next := range columns {
			fmt.Fprintf(&sb, " %s |", next)
		}
		sb.WriteString("\n|---|")
		for range columns {
			sb.WriteString("---|")
		}
		sb.WriteString("\n")
		for _, prior := range r.Transitions.Rows() {
			fmt.Fprintf(&sb, "| %s |", prior)
			for _, next := range columns {
				fmt.Fprintf(&sb, " %d |", r.Transitions.Count(prior, next))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

func markdownFloat(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func markdownSci(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3e", v)
}

// HTMLExporter renders the Markdown report as a standalone HTML page
type HTMLExporter struct {
	IncludeTimestamp bool
}

// Export converts a Report to an HTML string
func (he *HTMLExporter) Export(r *Report) (string, error) {
	md, err := (&MarkdownExporter{IncludeTimestamp: he.IncludeTimestamp}).Export(r)
	if err != nil {
		return "", err
	}

	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := renderer.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	title := "Tool Window Usage Report"
	if r.Source != "" {
		title += " - " + r.Source
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

// NormalizeFormat lowercases format and maps the "md" alias onto "markdown"
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "md" {
		format = "markdown"
	}
	return format
}

// ExportToString renders r in the given document format (json, markdown, html)
func ExportToString(r *Report, format string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	var exporter Exporter
	switch format = NormalizeFormat(format); format {
	case "json":
		exporter = &JSONExporter{Pretty: true}
	case "markdown":
		exporter = &MarkdownExporter{IncludeTimestamp: true}
	case "html":
		exporter = &HTMLExporter{IncludeTimestamp: true}
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: json, markdown, html)", format)
	}

	return exporter.Export(r)
}
