package report

import (
	"math"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/harrison/toolwindow/internal/stats"
)

// minSeconds is the floor applied to durations before log scaling
const minSeconds = 1e-6

// CountBar is one bar of the completed-interval counts chart
type CountBar struct {
	OpenType models.OpenType `json:"open_type"`
	Count    int             `json:"count"`
}

// HistogramSeries holds the per-type counts over shared log-spaced edges
type HistogramSeries struct {
	Edges  []float64                 `json:"edges"`
	Counts map[models.OpenType][]int `json:"counts"`
}

// TransitionGrid is the implicit-close matrix as a heatmap: Counts[i][j] is the
// number of Types[i] intervals implicitly closed by a Types[j] open.
type TransitionGrid struct {
	Types  []models.OpenType `json:"types"`
	Counts [][]int           `json:"counts"`
}

// ChartSet carries the data behind the standard charts. Durations are in seconds.
type ChartSet struct {
	Counts      []CountBar                         `json:"counts"`
	Histogram   HistogramSeries                    `json:"histogram"`
	ECDF        map[models.OpenType][]stats.Point  `json:"ecdf"`
	Box         map[models.OpenType]stats.BoxStats `json:"box"`
	Transitions *TransitionGrid                    `json:"transitions,omitempty"`
}

// NewTransitionGrid lays m out over every open type, zeros included
func NewTransitionGrid(m interval.TransitionMatrix) *TransitionGrid {
	return &TransitionGrid{
		Types:  models.OpenTypes(),
		Counts: m.Dense(),
	}
}

// BuildCharts computes the chart series for the completed intervals.
// bins is the number of histogram edges.
func BuildCharts(intervals []models.Interval, bins int) *ChartSet {
	durations := stats.CompletedDurations(intervals)

	cs := &ChartSet{
		Histogram: HistogramSeries{Counts: make(map[models.OpenType][]int)},
		ECDF:      make(map[models.OpenType][]stats.Point),
		Box:       make(map[models.OpenType]stats.BoxStats),
	}

	seconds := make(map[models.OpenType][]float64)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, ot := range models.OpenTypes() {
		ms := durations[ot]
		if len(ms) == 0 {
			continue
		}
		cs.Counts = append(cs.Counts, CountBar{OpenType: ot, Count: len(ms)})

		s := make([]float64, len(ms))
		for i, v := range ms {
			s[i] = math.Max(v/1000, minSeconds)
			lo = math.Min(lo, s[i])
			hi = math.Max(hi, s[i])
		}
		seconds[ot] = s
	}

	if len(seconds) == 0 {
		return cs
	}

	cs.Histogram.Edges = histogramEdges(lo, hi, bins)
	for _, ot := range models.OpenTypes() {
		s, ok := seconds[ot]
		if !ok {
			continue
		}
		cs.Histogram.Counts[ot] = stats.Histogram(s, cs.Histogram.Edges)
		cs.ECDF[ot] = stats.ECDF(s)
		cs.Box[ot] = stats.Box(s)
	}
	return cs
}

// histogramEdges spans [lo, hi] logarithmically. A single distinct value gets one bin.
func histogramEdges(lo, hi float64, bins int) []float64 {
	if lo == hi || bins < 2 {
		return []float64{lo, hi}
	}
	return stats.LogSpace(lo, hi, bins)
}
