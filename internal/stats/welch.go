package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/harrison/toolwindow/internal/models"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when a group has fewer than two observations
var ErrInsufficientData = errors.New("not enough data for a statistical test")

// WelchResult is the outcome of Welch's t-test on log-transformed durations,
// comparing auto against manual.
type WelchResult struct {
	T           float64 `json:"t"`
	DF          float64 `json:"df"`
	P           float64 `json:"p"`             // two-sided
	MeanLogDiff float64 `json:"mean_log_diff"` // mean ln(auto) - mean ln(manual)
	Ratio       float64 `json:"ratio"`         // exp(MeanLogDiff), geometric mean ratio
	NAuto       int     `json:"n_auto"`
	NManual     int     `json:"n_manual"`
}

// WelchLogTest runs Welch's unequal-variance t-test on ln(duration in seconds) of
// completed auto intervals against completed manual intervals.
func WelchLogTest(intervals []models.Interval) (*WelchResult, error) {
	groups := CompletedDurations(intervals)
	auto := logSeconds(groups[models.OpenTypeAuto])
	manual := logSeconds(groups[models.OpenTypeManual])

	if len(auto) < 2 || len(manual) < 2 {
		return nil, fmt.Errorf("%w: auto=%d manual=%d", ErrInsufficientData, len(auto), len(manual))
	}

	res, err := Welch(auto, manual)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Welch runs a two-sided Welch's t-test of a against b.
func Welch(a, b []float64) (*WelchResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, ErrInsufficientData
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	seA, seB := varA/na, varB/nb
	se := math.Sqrt(seA + seB)
	diff := meanA - meanB

	res := &WelchResult{
		MeanLogDiff: diff,
		Ratio:       math.Exp(diff),
		NAuto:       len(a),
		NManual:     len(b),
	}

	if se == 0 {
		// both samples constant: the statistic is undefined
		res.T = math.NaN()
		res.DF = math.NaN()
		res.P = math.NaN()
		return res, nil
	}

	res.T = diff / se
	res.DF = (seA + seB) * (seA + seB) / (seA*seA/(na-1) + seB*seB/(nb-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	res.P = 2 * dist.CDF(-math.Abs(res.T))
	if res.P > 1 {
		res.P = 1
	}
	return res, nil
}

func logSeconds(ms []float64) []float64 {
	out := make([]float64, 0, len(ms))
	for _, v := range ms {
		out = append(out, math.Log(v/1000.0))
	}
	return out
}
