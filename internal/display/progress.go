package display

import (
	"fmt"
	"io"
	"path/filepath"
)

// ProgressIndicator reports output files as they are written:
//
//	Writing outputs:
//	  [1/5] toolwindow_intervals.csv (12.4 KB)
//	✓ Wrote 5 files (20.1 KB) to out
type ProgressIndicator struct {
	writer  io.Writer
	total   int
	current int
	bytes   int
}

// NewProgressIndicator creates an indicator expecting total files
func NewProgressIndicator(w io.Writer, total int) *ProgressIndicator {
	return &ProgressIndicator{
		writer: w,
		total:  total,
	}
}

// Start displays the header message
func (p *ProgressIndicator) Start() {
	fmt.Fprintf(p.writer, "Writing outputs:\n")
}

// Step records one written file and prints it in cyan
func (p *ProgressIndicator) Step(path string, size int) {
	p.current++
	p.bytes += size
	fmt.Fprintf(p.writer, "\x1b[36m  [%d/%d] %s (%s)\x1b[0m\n", p.current, p.total, filepath.Base(path), FormatSize(int64(size)))
}

// Complete displays the file count and total size with a green checkmark
func (p *ProgressIndicator) Complete(dir string) {
	fmt.Fprintf(p.writer, "\x1b[32m✓\x1b[0m Wrote %d files (%s) to %s\n", p.current, FormatSize(int64(p.bytes)), dir)
}

// FormatSize renders a byte count with a binary unit, e.g. "512 B", "12.4 KB"
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
