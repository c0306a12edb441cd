package interval

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/harrison/toolwindow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userEvents(user string, offset int64) []models.Event {
	return []models.Event{
		models.NewOpened(user, offset+0, models.OpenTypeManual),
		models.NewOpened(user, offset+40, models.OpenTypeAuto),
		models.NewClosed(user, offset+100),
		models.NewClosed(user, offset+110),
		models.NewOpened(user, offset+200, models.OpenTypeAuto),
	}
}

func byUser(intervals []models.Interval) map[string][]models.Interval {
	out := make(map[string][]models.Interval)
	for _, iv := range intervals {
		out[iv.UserID] = append(out[iv.UserID], iv)
	}
	return out
}

func TestGroupByUser(t *testing.T) {
	events := append(userEvents("b", 0), userEvents("a", 5)...)

	groups, users := GroupByUser(events)
	assert.Equal(t, []string{"a", "b"}, users)
	assert.Len(t, groups["a"], 5)
	assert.Equal(t, int64(5), groups["a"][0].Timestamp)
}

func TestReconstructAll_Independence(t *testing.T) {
	a := userEvents("alice", 0)
	b := userEvents("bob", 7)

	// same per-user order, different interleavings
	sequential := append(append([]models.Event{}, a...), b...)
	var interleaved []models.Event
	for i := range a {
		interleaved = append(interleaved, b[i], a[i])
	}

	first, err := ReconstructAll(context.Background(), sequential, Options{Workers: 1})
	require.NoError(t, err)
	second, err := ReconstructAll(context.Background(), interleaved, Options{Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, byUser(first.Intervals), byUser(second.Intervals))
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
	assert.Equal(t, 2, second.Users)

	alone, err := Reconstruct("alice", a)
	require.NoError(t, err)
	assert.Equal(t, alone.Intervals, byUser(second.Intervals)["alice"])
}

func TestReconstructAll_ManyUsersMatchesSequential(t *testing.T) {
	var events []models.Event
	for i := 0; i < 200; i++ {
		events = append(events, userEvents(fmt.Sprintf("user-%03d", i), int64(i))...)
	}

	var calls int32
	res, err := ReconstructAll(context.Background(), events, Options{
		Workers: 8,
		Progress: func(done, total int) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, 200, total)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(200), atomic.LoadInt32(&calls))
	assert.Equal(t, 200, res.Users)

	// 3 intervals per user: implicit, explicit, censored
	assert.Len(t, res.Intervals, 600)
	assert.Equal(t, Diagnostics{OrphanCloses: 200, ImplicitCloses: 200, Censored: 200}, res.Diagnostics)

	// merged table is ordered by (user, open_ts)
	for i := 1; i < len(res.Intervals); i++ {
		prev, cur := res.Intervals[i-1], res.Intervals[i]
		if prev.UserID == cur.UserID {
			assert.Less(t, prev.OpenTS, cur.OpenTS)
		} else {
			assert.Less(t, prev.UserID, cur.UserID)
		}
	}
}

func TestReconstructAll_ContractErrorStopsRun(t *testing.T) {
	events := append(userEvents("good", 0),
		models.NewOpened("bad", 10, models.OpenTypeNone),
	)

	res, err := ReconstructAll(context.Background(), events, Options{Workers: 2})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMissingOpenType)
	assert.Contains(t, err.Error(), "user bad")
}

func TestReconstructAll_Empty(t *testing.T) {
	res, err := ReconstructAll(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Intervals)
	assert.Equal(t, 0, res.Users)
}

func TestReconstructAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []models.Event
	for i := 0; i < 50; i++ {
		events = append(events, userEvents(fmt.Sprintf("u%d", i), 0)...)
	}

	// Cancellation races with the first launches; whenever it wins the error is context.Canceled.
	_, err := ReconstructAll(ctx, events, Options{Workers: 1})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
