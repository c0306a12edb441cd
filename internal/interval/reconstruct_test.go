package interval

import (
	"errors"
	"testing"

	"github.com/harrison/toolwindow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestReconstruct_SingleOpenRoundTrip(t *testing.T) {
	events := []models.Event{
		models.NewOpened("U", 0, models.OpenTypeManual),
		models.NewClosed("U", 100),
	}

	res, err := Reconstruct("U", events)
	require.NoError(t, err)
	require.Len(t, res.Intervals, 1)

	assert.Equal(t, models.Interval{
		UserID:        "U",
		OpenTS:        0,
		CloseTS:       ptr(100),
		OpenType:      models.OpenTypeManual,
		Censored:      false,
		ImplicitClose: false,
		DurationMS:    ptr(100),
	}, res.Intervals[0])
	assert.Equal(t, Diagnostics{}, res.Diagnostics)
}

func TestReconstruct_ImplicitClose(t *testing.T) {
	events := []models.Event{
		models.NewOpened("U", 0, models.OpenTypeManual),
		models.NewOpened("U", 50, models.OpenTypeAuto),
	}

	res, err := Reconstruct("U", events)
	require.NoError(t, err)
	require.Len(t, res.Intervals, 2)

	first := res.Intervals[0]
	assert.Equal(t, int64(0), first.OpenTS)
	assert.Equal(t, ptr(50), first.CloseTS)
	assert.Equal(t, models.OpenTypeManual, first.OpenType)
	assert.True(t, first.ImplicitClose)
	assert.False(t, first.Censored)
	assert.Equal(t, ptr(50), first.DurationMS)

	second := res.Intervals[1]
	assert.Equal(t, int64(50), second.OpenTS)
	assert.Nil(t, second.CloseTS)
	assert.Nil(t, second.DurationMS)
	assert.Equal(t, models.OpenTypeAuto, second.OpenType)
	assert.True(t, second.Censored)
	assert.False(t, second.ImplicitClose)

	assert.Equal(t, Diagnostics{ImplicitCloses: 1, Censored: 1}, res.Diagnostics)
}

func TestReconstruct_OrphanCloseIgnored(t *testing.T) {
	res, err := Reconstruct("U", []models.Event{models.NewClosed("U", 10)})
	require.NoError(t, err)
	assert.Empty(t, res.Intervals)
	assert.Equal(t, 1, res.Diagnostics.OrphanCloses)
}

func TestReconstruct_TieBreakZeroDurationDropped(t *testing.T) {
	events := []models.Event{
		models.NewOpened("U", 0, models.OpenTypeManual),
		models.NewClosed("U", 0),
	}

	// Sorted, the close comes first at the shared timestamp.
	sorted := []models.Event{events[1], events[0]}
	res, err := Reconstruct("U", sorted)
	require.NoError(t, err)
	require.Len(t, res.Intervals, 1)
	assert.True(t, res.Intervals[0].Censored, "close sorted first is an orphan, the open stays censored")
	assert.Equal(t, 1, res.Diagnostics.OrphanCloses)

	// Two opens at the same timestamp yield a zero-length implicit interval that is dropped.
	res, err = Reconstruct("U", []models.Event{
		models.NewOpened("U", 0, models.OpenTypeManual),
		models.NewOpened("U", 0, models.OpenTypeAuto),
		models.NewClosed("U", 10),
	})
	require.NoError(t, err)
	require.Len(t, res.Intervals, 1)
	assert.Equal(t, models.OpenTypeAuto, res.Intervals[0].OpenType)
	assert.Equal(t, ptr(10), res.Intervals[0].DurationMS)
	assert.Equal(t, 1, res.Diagnostics.DegenerateDropped)
	for _, iv := range res.Intervals {
		assert.NoError(t, iv.Validate())
	}
}

func TestReconstruct_UnsortedOpenCloseAtSameTimestampRejected(t *testing.T) {
	events := []models.Event{
		models.NewOpened("U", 0, models.OpenTypeManual),
		models.NewClosed("U", 0),
	}

	res, err := Reconstruct("U", events)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrOrderingViolation))

	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ViolationOrdering, ce.Kind)
	assert.Equal(t, 1, ce.Index)
	require.NotNil(t, ce.Prev)
	assert.Contains(t, err.Error(), "user U")
}

func TestReconstruct_ContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		events []models.Event
		want   error
	}{
		{
			name: "decreasing timestamps",
			events: []models.Event{
				models.NewOpened("U", 10, models.OpenTypeManual),
				models.NewClosed("U", 5),
			},
			want: ErrOrderingViolation,
		},
		{
			name: "opened without open type",
			events: []models.Event{
				models.NewOpened("U", 10, models.OpenTypeNone),
			},
			want: ErrMissingOpenType,
		},
		{
			name: "foreign user",
			events: []models.Event{
				models.NewOpened("U", 10, models.OpenTypeAuto),
				models.NewClosed("V", 20),
			},
			want: ErrUserMismatch,
		},
		{
			name: "unknown kind",
			events: []models.Event{
				{UserID: "U", Timestamp: 1, Kind: "focus"},
			},
			want: ErrOrderingViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Reconstruct("U", tt.events)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReconstruct_StateMachineSequence(t *testing.T) {
	// orphan, open auto, implicit close [10,25], close [25,40], orphan,
	// open manual, close [50,90], open manual left censored
	events := []models.Event{
		models.NewClosed("U", 1),
		models.NewOpened("U", 10, models.OpenTypeAuto),
		models.NewOpened("U", 25, models.OpenTypeAuto),
		models.NewClosed("U", 40),
		models.NewClosed("U", 41),
		models.NewOpened("U", 50, models.OpenTypeManual),
		models.NewClosed("U", 90),
		models.NewOpened("U", 100, models.OpenTypeManual),
	}

	res, err := Reconstruct("U", events)
	require.NoError(t, err)
	require.Len(t, res.Intervals, 4)

	var opens []int64
	for _, iv := range res.Intervals {
		opens = append(opens, iv.OpenTS)
		assert.NoError(t, iv.Validate())
	}
	assert.Equal(t, []int64{10, 25, 50, 100}, opens)
	assert.True(t, res.Intervals[0].ImplicitClose)
	assert.False(t, res.Intervals[1].ImplicitClose)
	assert.True(t, res.Intervals[3].Censored)
	assert.Equal(t, Diagnostics{OrphanCloses: 2, ImplicitCloses: 1, Censored: 1}, res.Diagnostics)
}

func TestReconstruct_AtMostOneCensored(t *testing.T) {
	events := []models.Event{
		models.NewOpened("U", 1, models.OpenTypeAuto),
		models.NewOpened("U", 2, models.OpenTypeAuto),
		models.NewOpened("U", 3, models.OpenTypeManual),
	}

	res, err := Reconstruct("U", events)
	require.NoError(t, err)

	censored := 0
	for _, iv := range res.Intervals {
		if iv.Censored {
			censored++
		}
	}
	assert.Equal(t, 1, censored)
	assert.True(t, res.Intervals[len(res.Intervals)-1].Censored)
}

func TestReconstruct_Idempotent(t *testing.T) {
	events := []models.Event{
		models.NewOpened("U", 0, models.OpenTypeManual),
		models.NewOpened("U", 30, models.OpenTypeAuto),
		models.NewClosed("U", 45),
		models.NewOpened("U", 60, models.OpenTypeAuto),
	}

	first, err := Reconstruct("U", events)
	require.NoError(t, err)
	second, err := Reconstruct("U", events)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconstruct_EmptyStream(t *testing.T) {
	res, err := Reconstruct("U", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Intervals)
}
