package normalize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NormalizesRows(t *testing.T) {
	input := `user_id,timestamp,event,open_type
u2,200,CLOSE,manual
u1,100,open,Manual
u1,150,closed,
u1,150,opened,AUTO
u2,100,opened,auto
`
	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []models.Event{
		models.NewOpened("u1", 100, models.OpenTypeManual),
		models.NewClosed("u1", 150),
		models.NewOpened("u1", 150, models.OpenTypeAuto),
		models.NewOpened("u2", 100, models.OpenTypeAuto),
		models.NewClosed("u2", 200),
	}, table.Events)
	assert.Equal(t, Report{RowsRead: 5, RowsKept: 5}, table.Report)
	assert.Equal(t, 2, table.Users())
}

func TestParse_DropsInvalidRows(t *testing.T) {
	input := `user_id,timestamp,event,open_type
u1,abc,opened,manual
u1,,opened,manual
u1,NaN,closed,
u1,10,focus,manual
u1,20,opened,
u1,30,opened,scripted
u1,40,opened,manual,extra
u1,50,opened,auto
`
	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []models.Event{models.NewOpened("u1", 50, models.OpenTypeAuto)}, table.Events)
	assert.Equal(t, Report{
		RowsRead:         8,
		RowsKept:         1,
		InvalidTimestamp: 3,
		UnknownEvent:     1,
		MissingOpenType:  2,
		Malformed:        1,
	}, table.Report)
	assert.Equal(t, 7, table.Report.Dropped())
}

func TestParse_ShortRowsArePadded(t *testing.T) {
	input := "user_id,timestamp,event,open_type\nu1,0,open,manual\nu1,100,close\nu1,200,open\nu1\n"

	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []models.Event{
		models.NewOpened("u1", 0, models.OpenTypeManual),
		models.NewClosed("u1", 100),
	}, table.Events)
	assert.Equal(t, Report{
		RowsRead:         4,
		RowsKept:         2,
		InvalidTimestamp: 1,
		MissingOpenType:  1,
	}, table.Report)
}

func TestParse_EventIDColumn(t *testing.T) {
	input := "User_ID,Timestamp,Event_ID,Open_Type\nu,1.7e3,open,auto\nu,2000.9,close,auto\n"

	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Events, 2)
	assert.Equal(t, int64(1700), table.Events[0].Timestamp)
	assert.Equal(t, int64(2000), table.Events[1].Timestamp)
	assert.Equal(t, models.OpenTypeNone, table.Events[1].OpenType, "closed rows never carry an open type")
}

func TestParse_EventPreferredOverEventID(t *testing.T) {
	input := "user_id,timestamp,event_id,event,open_type\nu,1,bogus,opened,manual\n"

	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Events, 1)
	assert.Equal(t, models.EventOpened, table.Events[0].Kind)
}

func TestParse_MissingOpenTypeColumn(t *testing.T) {
	input := "user_id,timestamp,event\nu,1,opened\nu,2,closed\n"

	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []models.Event{models.NewClosed("u", 2)}, table.Events)
	assert.Equal(t, 1, table.Report.MissingOpenType)
}

func TestParse_MissingColumns(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no event column", "user_id,timestamp\n", "event|event_id"},
		{"no user column", "timestamp,event\n", "user_id"},
		{"empty input", "", "empty input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingColumn)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"1700000000000", 1700000000000, true},
		{" 42 ", 42, true},
		{"-5", -5, true},
		{"12.9", 12, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"inf", 0, false},
		{"1e30", 0, false},
		{"ten", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("user_id,timestamp,event,open_type\nu,5,opened,manual\n"), 0644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, table.Events, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

// An open and a close logged at the same millisecond never yield a positive interval.
func TestParse_TieBreakFeedsReconstructor(t *testing.T) {
	input := "user_id,timestamp,event,open_type\nU,0,opened,manual\nU,0,closed,\n"

	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	res, err := interval.ReconstructAll(context.Background(), table.Events, interval.Options{})
	require.NoError(t, err)
	for _, iv := range res.Intervals {
		if !iv.Censored {
			t.Fatalf("unexpected completed interval %+v", iv)
		}
	}
}
