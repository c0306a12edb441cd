// Package stats computes descriptive statistics and hypothesis tests over
// completed tool window intervals.
package stats

import (
	"math"
	"sort"

	"github.com/harrison/toolwindow/internal/models"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics for one sample
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Std    float64 `json:"std"` // sample standard deviation, NaN when N < 2
}

// OpenTypeSummary is a Summary of completed interval durations (ms) for one open type
type OpenTypeSummary struct {
	OpenType models.OpenType `json:"open_type"`
	Summary
}

// Describe computes the Summary of values. The input slice is not modified.
// An empty sample yields N=0 and NaN statistics.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Median: nan, P25: nan, P75: nan, P90: nan, Std: nan}
	}

	sorted := sortedCopy(values)
	s := Summary{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: Quantile(sorted, 0.5),
		P25:    Quantile(sorted, 0.25),
		P75:    Quantile(sorted, 0.75),
		P90:    Quantile(sorted, 0.90),
		Std:    math.NaN(),
	}
	if s.N > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	return s
}

// Quantile returns the p-quantile of an ascending sample using linear interpolation
// between the closest ranks, h = (n-1)p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// CompletedDurations returns completed interval durations in milliseconds grouped by
// open type. Censored intervals and intervals without a valid open type are skipped.
func CompletedDurations(intervals []models.Interval) map[models.OpenType][]float64 {
	out := make(map[models.OpenType][]float64)
	for _, iv := range intervals {
		if !iv.Completed() || !iv.OpenType.Valid() {
			continue
		}
		out[iv.OpenType] = append(out[iv.OpenType], float64(*iv.DurationMS))
	}
	return out
}

// SummarizeByOpenType describes completed durations per open type, in display order.
// Open types without completed intervals are omitted.
func SummarizeByOpenType(intervals []models.Interval) []OpenTypeSummary {
	groups := CompletedDurations(intervals)

	var out []OpenTypeSummary
	for _, ot := range models.OpenTypes() {
		values, ok := groups[ot]
		if !ok {
			continue
		}
		out = append(out, OpenTypeSummary{OpenType: ot, Summary: Describe(values)})
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
