package interval

import (
	"context"
	"testing"

	"github.com/harrison/toolwindow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeTransitions_TwoUsers(t *testing.T) {
	var events []models.Event
	for _, user := range []string{"u1", "u2"} {
		events = append(events,
			models.NewOpened(user, 0, models.OpenTypeManual),
			models.NewOpened(user, 50, models.OpenTypeAuto),
			models.NewClosed(user, 80),
		)
	}

	res, err := ReconstructAll(context.Background(), events, Options{})
	require.NoError(t, err)

	matrix := AnalyzeTransitions(res.Intervals)
	assert.Equal(t, TransitionMatrix{
		models.OpenTypeManual: {models.OpenTypeAuto: 2},
	}, matrix)
	assert.Equal(t, 2, matrix.Total())
	assert.Equal(t, 0, matrix.Count(models.OpenTypeAuto, models.OpenTypeManual))
}

func TestAnalyzeTransitions_OrderIrrelevant(t *testing.T) {
	res, err := Reconstruct("u", []models.Event{
		models.NewOpened("u", 0, models.OpenTypeAuto),
		models.NewOpened("u", 10, models.OpenTypeAuto),
		models.NewOpened("u", 20, models.OpenTypeManual),
		models.NewOpened("u", 30, models.OpenTypeAuto),
	})
	require.NoError(t, err)

	forward := AnalyzeTransitions(res.Intervals)

	reversed := make([]models.Interval, len(res.Intervals))
	for i, iv := range res.Intervals {
		reversed[len(res.Intervals)-1-i] = iv
	}
	backward := AnalyzeTransitions(reversed)

	assert.Equal(t, forward, backward)
	assert.Equal(t, 1, forward.Count(models.OpenTypeAuto, models.OpenTypeAuto))
	assert.Equal(t, 1, forward.Count(models.OpenTypeAuto, models.OpenTypeManual))
	assert.Equal(t, 1, forward.Count(models.OpenTypeManual, models.OpenTypeAuto))
	assert.Equal(t, 3, forward.Total())

	// input slice is left untouched
	assert.Equal(t, int64(30), reversed[0].OpenTS)
}

func TestAnalyzeTransitions_DroppedSuccessorShiftsIndex(t *testing.T) {
	// The zero-length auto interval at t=50 is dropped, so manual@0 is followed by manual@50.
	res, err := Reconstruct("u", []models.Event{
		models.NewOpened("u", 0, models.OpenTypeManual),
		models.NewOpened("u", 50, models.OpenTypeAuto),
		models.NewOpened("u", 50, models.OpenTypeManual),
		models.NewClosed("u", 70),
	})
	require.NoError(t, err)
	require.Len(t, res.Intervals, 2)

	matrix := AnalyzeTransitions(res.Intervals)
	assert.Equal(t, TransitionMatrix{
		models.OpenTypeManual: {models.OpenTypeManual: 1},
	}, matrix)
}

func TestAnalyzeTransitions_NoImplicitCloses(t *testing.T) {
	intervals := []models.Interval{
		models.NewClosedInterval("u", 0, 10, models.OpenTypeManual, false),
		models.NewCensoredInterval("u", 20, models.OpenTypeAuto),
	}

	matrix := AnalyzeTransitions(intervals)
	assert.Empty(t, matrix)
	assert.Empty(t, matrix.Rows())
	assert.Equal(t, [][]int{{0, 0}, {0, 0}}, matrix.Dense())
}

func TestAnalyzeTransitions_TrailingImplicitSkipped(t *testing.T) {
	intervals := []models.Interval{
		models.NewClosedInterval("u", 0, 10, models.OpenTypeManual, true),
	}
	assert.Equal(t, 0, AnalyzeTransitions(intervals).Total())
}

func TestTransitionMatrix_Layout(t *testing.T) {
	m := make(TransitionMatrix)
	m.Add(models.OpenTypeAuto, models.OpenTypeManual)
	m.Add(models.OpenTypeAuto, models.OpenTypeManual)
	m.Add(models.OpenTypeManual, models.OpenTypeManual)

	assert.Equal(t, []models.OpenType{models.OpenTypeManual, models.OpenTypeAuto}, m.Rows())
	assert.Equal(t, []models.OpenType{models.OpenTypeManual}, m.Columns())
	assert.Equal(t, [][]int{{1, 0}, {2, 0}}, m.Dense())
}
