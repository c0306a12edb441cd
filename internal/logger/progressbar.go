package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const defaultBarWidth = 10

// ProgressBar renders completion of a counted unit of work,
// e.g. "[=====     ] 5/10 users (50%)".
type ProgressBar struct {
	Total int
	Width int    // 0 uses defaultBarWidth
	Unit  string // optional noun after the counts
	Color bool   // cyan while running, green when complete
}

// Percentage returns current/Total clamped to 0-100
func (pb ProgressBar) Percentage(current int) int {
	if pb.Total <= 0 {
		return 0
	}
	perc := current * 100 / pb.Total
	switch {
	case perc > 100:
		return 100
	case perc < 0:
		return 0
	}
	return perc
}

// Render returns the bar for current
func (pb ProgressBar) Render(current int) string {
	width := pb.Width
	if width < 1 {
		width = defaultBarWidth
	}

	perc := pb.Percentage(current)
	filled := perc * width / 100

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.Repeat("=", filled))
	b.WriteString(strings.Repeat(" ", width-filled))
	fmt.Fprintf(&b, "] %d/%d", current, pb.Total)
	if pb.Unit != "" {
		b.WriteString(" " + pb.Unit)
	}
	fmt.Fprintf(&b, " (%d%%)", perc)

	if !pb.Color {
		return b.String()
	}
	if perc < 100 {
		return color.New(color.FgCyan).Sprint(b.String())
	}
	return color.New(color.FgGreen).Sprint(b.String())
}
