package logger

import (
	"bytes"
	"testing"

	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/normalize"
	"github.com/stretchr/testify/assert"
)

func TestMultiLogger_FansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	ml := NewMultiLogger(NewConsoleLogger(a, "debug"), nil, NewConsoleLogger(b, "warn"))

	ml.LogDebug("dbg")
	ml.LogInfo("inf")
	ml.LogWarn("wrn")
	ml.LogError("err")
	ml.LogLoadReport(normalize.Report{RowsRead: 1, RowsKept: 1})
	ml.LogDiagnostics(interval.Diagnostics{OrphanCloses: 1})
	ml.LogProgress(1, 2)
	ml.LogRunSummary(RunSummary{RunID: "x"})

	for _, want := range []string{"dbg", "inf", "wrn", "err", "Loaded 1 event(s)", "Reconstruction:", "Progress:", "Run: x"} {
		assert.Contains(t, a.String(), want)
	}

	assert.NotContains(t, b.String(), "inf")
	assert.Contains(t, b.String(), "wrn")
	assert.Contains(t, b.String(), "err")
	assert.Contains(t, b.String(), "Ignored 1 close event(s)")
	assert.NotContains(t, b.String(), "Run Summary")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NewNoOpLogger()
	l.LogInfo("x")
	l.LogLoadReport(normalize.Report{})
	l.LogDiagnostics(interval.Diagnostics{})
	l.LogProgress(0, 0)
	l.LogRunSummary(RunSummary{})
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		bar     ProgressBar
		current int
		want    string
		perc    int
	}{
		{"empty", ProgressBar{}, 0, "[          ] 0/0 (0%)", 0},
		{"half", ProgressBar{Total: 10}, 5, "[=====     ] 5/10 (50%)", 50},
		{"full with unit", ProgressBar{Total: 3, Unit: "users"}, 3, "[==========] 3/3 users (100%)", 100},
		{"overflow clamps", ProgressBar{Total: 10}, 12, "[==========] 12/10 (100%)", 100},
		{"custom width", ProgressBar{Total: 4, Width: 4}, 1, "[=   ] 1/4 (25%)", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bar.Render(tt.current))
			assert.Equal(t, tt.perc, tt.bar.Percentage(tt.current))
		})
	}
}
