package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_ValidFile(t *testing.T) {
	path := writeEventsFile(t, t.TempDir(), sampleEventsCSV)

	var output bytes.Buffer
	err := validateEventFile(context.Background(), path, &output)
	if err != nil {
		t.Errorf("validateEventFile() returned error for valid file: %v", err)
	}

	outputStr := output.String()
	if !strings.Contains(outputStr, "Event log is valid") {
		t.Errorf("Expected success message, got: %s", outputStr)
	}
	if !strings.Contains(outputStr, "Loaded 8 event(s) for 2 user(s)") {
		t.Errorf("Expected event count message, got: %s", outputStr)
	}
	if !strings.Contains(outputStr, "Reconstructed 5 interval(s): 4 completed, 1 censored") {
		t.Errorf("Expected interval count message, got: %s", outputStr)
	}
	if strings.Contains(outputStr, "Warning") {
		t.Errorf("Did not expect a warning, got: %s", outputStr)
	}
}

func TestValidateCommand_DroppedRowsWarn(t *testing.T) {
	path := writeEventsFile(t, t.TempDir(), `user_id,timestamp,event,open_type
U1,0,opened,manual
U1,abc,closed,
U1,50,closed,
U1,60,closed,
U1,70,teleported,
`)

	var output bytes.Buffer
	if err := validateEventFile(context.Background(), path, &output); err != nil {
		t.Fatalf("validateEventFile() returned error: %v", err)
	}

	outputStr := output.String()
	for _, want := range []string{
		"Warning: Rows Dropped",
		"2 of 5 rows in events.csv",
		"1 invalid timestamp",
		"1 unknown event value",
		"Warning: Reconstruction Anomalies",
		"1 close event(s) with no open window",
	} {
		if !strings.Contains(outputStr, want) {
			t.Errorf("Expected %q in output, got: %s", want, outputStr)
		}
	}
}

func TestValidateCommand_NoUsableEvents(t *testing.T) {
	path := writeEventsFile(t, t.TempDir(), `user_id,timestamp,event,open_type
U1,0,opened,sideways
`)

	var output bytes.Buffer
	err := validateEventFile(context.Background(), path, &output)
	if err == nil {
		t.Fatal("validateEventFile() should fail when no events remain")
	}
	if !strings.Contains(output.String(), "No usable events") {
		t.Errorf("Expected no usable events message, got: %s", output.String())
	}
}

func TestValidateCommand_MissingColumn(t *testing.T) {
	path := writeEventsFile(t, t.TempDir(), "user_id,event\nU1,opened\n")

	var output bytes.Buffer
	err := validateEventFile(context.Background(), path, &output)
	if err == nil {
		t.Fatal("validateEventFile() should fail for a file without a timestamp column")
	}
	if !strings.Contains(output.String(), "Failed to load events") {
		t.Errorf("Expected load failure message, got: %s", output.String())
	}
}

func TestValidateCommand_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeEventsFile(t, dir, sampleEventsCSV)
	missing := filepath.Join(dir, "missing.csv")

	output, err := executeRoot(t, "validate", good, missing)
	if err == nil {
		t.Fatal("validate should fail when one file cannot be loaded")
	}
	if !strings.Contains(err.Error(), "1 of 2 file(s)") {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "Event log is valid") {
		t.Errorf("Expected the valid file to be reported, got: %s", output)
	}
}

func TestValidateCommand_Directory(t *testing.T) {
	dir := t.TempDir()
	logs := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(filepath.Join(logs, "nested"), 0755))
	writeEventsFile(t, logs, sampleEventsCSV)
	writeEventsFile(t, filepath.Join(logs, "nested"), sampleEventsCSV)

	output, err := executeRoot(t, "validate", logs)
	require.NoError(t, err, output)
	assert.Equal(t, 1, strings.Count(output, "Event log is valid"))

	output, err = executeRoot(t, "validate", logs, "--recursive")
	require.NoError(t, err, output)
	assert.Equal(t, 2, strings.Count(output, "Event log is valid"))

	_, err = executeRoot(t, "validate", dir, "--pattern", "^day")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no event logs found")
}
