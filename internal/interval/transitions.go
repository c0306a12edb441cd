package interval

import (
	"sort"

	"github.com/harrison/toolwindow/internal/models"
)

// TransitionMatrix counts (prior open type -> next open type) pairs, where the prior
// interval was implicitly closed by the open that started the next one.
type TransitionMatrix map[models.OpenType]map[models.OpenType]int

// Add increments the count for a (prior, next) pair
func (m TransitionMatrix) Add(prior, next models.OpenType) {
	row, ok := m[prior]
	if !ok {
		row = make(map[models.OpenType]int)
		m[prior] = row
	}
	row[next]++
}

// Count returns the count for a pair; missing pairs are zero
func (m TransitionMatrix) Count(prior, next models.OpenType) int {
	return m[prior][next]
}

// Total returns the number of counted transitions
func (m TransitionMatrix) Total() int {
	total := 0
	for _, row := range m {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// Rows returns the prior open types present, in display order
func (m TransitionMatrix) Rows() []models.OpenType {
	return orderTypes(func(ot models.OpenType) bool {
		_, ok := m[ot]
		return ok
	}, m.rowKeys())
}

// Columns returns the next open types present in any row, in display order
func (m TransitionMatrix) Columns() []models.OpenType {
	seen := make(map[models.OpenType]bool)
	for _, row := range m {
		for next := range row {
			seen[next] = true
		}
	}
	keys := make([]models.OpenType, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return orderTypes(func(ot models.OpenType) bool { return seen[ot] }, keys)
}

// Dense returns a row-major grid over models.OpenTypes(), with zeros for missing pairs.
func (m TransitionMatrix) Dense() [][]int {
	types := models.OpenTypes()
	grid := make([][]int, len(types))
	for i, prior := range types {
		grid[i] = make([]int, len(types))
		for j, next := range types {
			grid[i][j] = m.Count(prior, next)
		}
	}
	return grid
}

func (m TransitionMatrix) rowKeys() []models.OpenType {
	keys := make([]models.OpenType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// orderTypes returns known types first in display order, then any others sorted.
func orderTypes(present func(models.OpenType) bool, keys []models.OpenType) []models.OpenType {
	var out []models.OpenType
	known := make(map[models.OpenType]bool)
	for _, ot := range models.OpenTypes() {
		known[ot] = true
		if present(ot) {
			out = append(out, ot)
		}
	}
	var extra []models.OpenType
	for _, k := range keys {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// AnalyzeTransitions tabulates, for every implicitly closed interval, the open type of
// the interval that follows it for the same user in open-time order.
//
// The input order does not matter. An implicit-close interval without a successor
// cannot come out of Reconstruct; if one is present anyway it is skipped.
func AnalyzeTransitions(intervals []models.Interval) TransitionMatrix {
	byUser := make(map[string][]models.Interval)
	for _, iv := range intervals {
		byUser[iv.UserID] = append(byUser[iv.UserID], iv)
	}

	matrix := make(TransitionMatrix)
	for _, seq := range byUser {
		sort.SliceStable(seq, func(i, j int) bool { return seq[i].OpenTS < seq[j].OpenTS })

		for i, iv := range seq {
			if !iv.ImplicitClose || iv.Censored {
				continue
			}
			if i+1 >= len(seq) {
				continue
			}
			matrix.Add(iv.OpenType, seq[i+1].OpenType)
		}
	}

	return matrix
}
