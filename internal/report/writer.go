package report

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/harrison/toolwindow/internal/filelock"
)

// Output file names
const (
	IntervalsFile   = "toolwindow_intervals.csv"
	SummaryFile     = "summary_by_open_type.csv"
	TransitionsFile = "implicit_transition_counts.csv"
	JSONFile        = "report.json"
	MarkdownFile    = "report.md"
	HTMLFile        = "report.html"
	ChartsFile      = "charts.json"
)

// Output formats understood by WriteAll
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Writer writes a Report's files into an output directory
type Writer struct {
	// OnWrite, when set, is called with each path and its size in bytes after it
	// has been written.
	OnWrite func(path string, size int)
}

type outputFile struct {
	name string
	data []byte
}

// Plan returns the file names WriteAll would produce for formats, in write order
func (w *Writer) Plan(r *Report, formats []string) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}

	var names []string
	seen := make(map[string]bool)
	for _, raw := range formats {
		format := NormalizeFormat(raw)
		if seen[format] {
			continue
		}
		seen[format] = true

		switch format {
		case FormatCSV:
			names = append(names, IntervalsFile, SummaryFile, TransitionsFile)
		case FormatJSON:
			names = append(names, JSONFile)
		case FormatMarkdown:
			names = append(names, MarkdownFile)
		case FormatHTML:
			names = append(names, HTMLFile)
		default:
			return nil, unsupportedFormat(format)
		}
	}
	if r.Charts != nil {
		names = append(names, ChartsFile)
	}
	return names, nil
}

func unsupportedFormat(format string) error {
	return fmt.Errorf("unsupported format: %s (supported: csv, json, markdown, html)", format)
}

// WriteAll renders every requested format and writes the files into dir. Each file is
// replaced atomically and the whole set is written under the directory lock, so
// concurrent runs into the same directory never interleave. Returns the written paths.
func (w *Writer) WriteAll(ctx context.Context, r *Report, dir string, formats []string) ([]string, error) {
	files, err := w.render(r, formats)
	if err != nil {
		return nil, err
	}

	var written []string
	err = filelock.WithDirLock(ctx, dir, func() error {
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, f.name)
			if err := filelock.AtomicWrite(path, f.data); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.name, err)
			}
			written = append(written, path)
			if w.OnWrite != nil {
				w.OnWrite(path, len(f.data))
			}
		}
		return nil
	})
	return written, err
}

// render produces file contents before anything touches the disk
func (w *Writer) render(r *Report, formats []string) ([]outputFile, error) {
	if r == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}

	var files []outputFile
	seen := make(map[string]bool)
	for _, raw := range formats {
		format := NormalizeFormat(raw)
		if seen[format] {
			continue
		}
		seen[format] = true

		switch format {
		case FormatCSV:
			csvFiles, err := renderCSV(r)
			if err != nil {
				return nil, err
			}
			files = append(files, csvFiles...)
		case FormatJSON:
			doc, err := (&JSONExporter{Pretty: true}).Export(r)
			if err != nil {
				return nil, err
			}
			files = append(files, outputFile{JSONFile, []byte(doc + "\n")})
		case FormatMarkdown:
			doc, err := (&MarkdownExporter{IncludeTimestamp: true}).Export(r)
			if err != nil {
				return nil, err
			}
			files = append(files, outputFile{MarkdownFile, []byte(doc)})
		case FormatHTML:
			doc, err := (&HTMLExporter{IncludeTimestamp: true}).Export(r)
			if err != nil {
				return nil, err
			}
			files = append(files, outputFile{HTMLFile, []byte(doc)})
		default:
			return nil, unsupportedFormat(format)
		}
	}

	if r.Charts != nil {
		data, err := json.MarshalIndent(r.Charts, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chart series: %w", err)
		}
		files = append(files, outputFile{ChartsFile, append(data, '\n')})
	}

	return files, nil
}

func renderCSV(r *Report) ([]outputFile, error) {
	intervals, err := IntervalsCSV(r.Intervals)
	if err != nil {
		return nil, err
	}
	summary, err := SummaryCSV(r.Summaries)
	if err != nil {
		return nil, err
	}
	transitions, err := TransitionsCSV(r.Transitions)
	if err != nil {
		return nil, err
	}
	return []outputFile{
		{IntervalsFile, intervals},
		{SummaryFile, summary},
		{TransitionsFile, transitions},
	}, nil
}
