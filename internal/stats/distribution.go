package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one (x, y) pair of a curve
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ECDF returns the empirical CDF step points of values: the i-th smallest value
// paired with i/n.
func ECDF(values []float64) []Point {
	sorted := sortedCopy(values)
	n := float64(len(sorted))
	points := make([]Point, len(sorted))
	for i, v := range sorted {
		points[i] = Point{X: v, Y: float64(i+1) / n}
	}
	return points
}

// LogSpace returns n edges spaced evenly in log10 between lo and hi inclusive.
// lo and hi must be positive.
func LogSpace(lo, hi float64, n int) []float64 {
	if n <= 0 || lo <= 0 || hi <= 0 {
		return nil
	}
	if n == 1 || lo == hi {
		return []float64{lo}
	}
	edges := floats.LogSpan(make([]float64, n), lo, hi)
	// pin the endpoints against rounding in the exp/log round trip
	edges[0], edges[n-1] = lo, hi
	return edges
}

// Histogram counts values into the bins defined by ascending edges. Bins are
// half-open [e_i, e_i+1) except the last, which includes its right edge. Values
// outside the edges are ignored.
func Histogram(values, edges []float64) []int {
	if len(edges) < 2 {
		return nil
	}
	last := len(edges) - 1
	counts := make([]int, last)

	inside := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= edges[0] && v <= edges[last] {
			inside = append(inside, v)
		}
	}
	if len(inside) == 0 {
		return counts
	}
	sort.Float64s(inside)

	// stat.Histogram needs every value strictly below the last divider
	dividers := append([]float64(nil), edges...)
	dividers[last] = math.Nextafter(dividers[last], math.Inf(1))

	for i, c := range stat.Histogram(make([]float64, last), dividers, inside, nil) {
		counts[i] = int(c)
	}
	return counts
}

// BoxStats summarizes a sample the way a boxplot without fliers draws it
type BoxStats struct {
	N           int     `json:"n"`
	Q1          float64 `json:"q1"`
	Median      float64 `json:"median"`
	Q3          float64 `json:"q3"`
	WhiskerLow  float64 `json:"whisker_low"`  // smallest value >= Q1 - 1.5 IQR
	WhiskerHigh float64 `json:"whisker_high"` // largest value <= Q3 + 1.5 IQR
}

// Box computes BoxStats for values
func Box(values []float64) BoxStats {
	if len(values) == 0 {
		nan := math.NaN()
		return BoxStats{Q1: nan, Median: nan, Q3: nan, WhiskerLow: nan, WhiskerHigh: nan}
	}

	sorted := sortedCopy(values)
	b := BoxStats{
		N:      len(sorted),
		Q1:     Quantile(sorted, 0.25),
		Median: Quantile(sorted, 0.5),
		Q3:     Quantile(sorted, 0.75),
	}
	iqr := b.Q3 - b.Q1
	lowFence := b.Q1 - 1.5*iqr
	highFence := b.Q3 + 1.5*iqr

	b.WhiskerLow = b.Q1
	for _, v := range sorted {
		if v >= lowFence {
			b.WhiskerLow = math.Min(v, b.Q1)
			break
		}
	}
	b.WhiskerHigh = b.Q3
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] <= highFence {
			b.WhiskerHigh = math.Max(sorted[i], b.Q3)
			break
		}
	}
	return b
}
