// Package report turns reconstructed intervals into the tabular files, documents
// and chart series of an analysis run.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/harrison/toolwindow/internal/normalize"
	"github.com/harrison/toolwindow/internal/stats"
)

// NoTestNote is reported in place of a comparison when either group is too small
const NoTestNote = "Not enough data for a statistical test."

// DefaultHistogramBins is the number of log-spaced histogram edges used when none is configured
const DefaultHistogramBins = 50

// Report is everything an analysis run produces
type Report struct {
	RunID       string
	Source      string
	GeneratedAt time.Time
	Load        normalize.Report
	Events      int
	Users       int
	Diagnostics interval.Diagnostics
	Intervals   []models.Interval
	Summaries   []stats.OpenTypeSummary
	Welch       *stats.WelchResult
	WelchNote   string // set when Welch is nil
	Transitions interval.TransitionMatrix
	Charts      *ChartSet
}

// Input collects the pipeline outputs a Report is built from
type Input struct {
	RunID  string
	Source string
	Table  *normalize.Table
	Result *interval.Result
	// HistogramBins is the number of histogram edges; charts are skipped when negative.
	HistogramBins int
	Now           func() time.Time
}

// Build computes the summaries, comparison, transitions and chart series of a run
func Build(in Input) (*Report, error) {
	if in.Table == nil {
		return nil, errors.New("report input requires a normalized table")
	}
	if in.Result == nil {
		return nil, errors.New("report input requires a reconstruction result")
	}

	for _, iv := range in.Result.Intervals {
		if err := iv.Validate(); err != nil {
			return nil, fmt.Errorf("invalid interval for user %s opened at %d: %w", iv.UserID, iv.OpenTS, err)
		}
	}

	now := time.Now
	if in.Now != nil {
		now = in.Now
	}

	r := &Report{
		RunID:       in.RunID,
		Source:      in.Source,
		GeneratedAt: now(),
		Load:        in.Table.Report,
		Events:      len(in.Table.Events),
		Users:       in.Result.Users,
		Diagnostics: in.Result.Diagnostics,
		Intervals:   in.Result.Intervals,
		Summaries:   stats.SummarizeByOpenType(in.Result.Intervals),
		Transitions: interval.AnalyzeTransitions(in.Result.Intervals),
	}

	welch, err := stats.WelchLogTest(in.Result.Intervals)
	switch {
	case err == nil:
		r.Welch = welch
	case errors.Is(err, stats.ErrInsufficientData):
		r.WelchNote = NoTestNote
	default:
		return nil, fmt.Errorf("failed to compare open types: %w", err)
	}

	if in.HistogramBins >= 0 {
		bins := in.HistogramBins
		if bins == 0 {
			bins = DefaultHistogramBins
		}
		r.Charts = BuildCharts(in.Result.Intervals, bins)
		r.Charts.Transitions = NewTransitionGrid(r.Transitions)
	}

	return r, nil
}

// Completed returns the number of intervals with a known duration
func (r *Report) Completed() int {
	n := 0
	for _, iv := range r.Intervals {
		if iv.Completed() {
			n++
		}
	}
	return n
}

// ComparisonLine renders the auto vs manual result the way it is printed to the console
func (r *Report) ComparisonLine() string {
	if r.Welch == nil {
		if r.WelchNote != "" {
			return r.WelchNote
		}
		return NoTestNote
	}
	return fmt.Sprintf("t = %.3f, p = %.3e; mean(auto) / mean(manual) ≈ %.2fx",
		r.Welch.T, r.Welch.P, r.Welch.Ratio)
}
