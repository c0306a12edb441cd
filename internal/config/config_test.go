package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogDir != ".toolwindow/logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, ".toolwindow/logs")
	}
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, []string{FormatCSV}, cfg.Formats)
	assert.True(t, cfg.Charts.Enabled)
	assert.Equal(t, 50, cfg.Charts.HistogramBins)
	assert.True(t, cfg.History.Enabled)
	assert.NoError(t, cfg.Validate())
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	path := writeConfig(t, `log_level: debug
log_dir: /tmp/logs
output_dir: results
workers: 4
timeout: 30s
formats: [csv, JSON, md]
charts:
  histogram_bins: 20
history:
  db_path: /tmp/runs.db
  keep_runs_days: 30
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/logs", cfg.LogDir)
	assert.Equal(t, "results", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{FormatCSV, FormatJSON, FormatMarkdown}, cfg.Formats)
	assert.True(t, cfg.Charts.Enabled, "unset nested keys keep their defaults")
	assert.Equal(t, 20, cfg.Charts.HistogramBins)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/runs.db", cfg.History.DBPath)
	assert.Equal(t, 30, cfg.History.KeepRunsDays)
}

func TestLoadConfigExplicitFalse(t *testing.T) {
	path := writeConfig(t, "charts:\n  enabled: false\nhistory:\n  enabled: false\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Charts.Enabled)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 50, cfg.Charts.HistogramBins)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed yaml", "log_level: [unclosed", "failed to parse config file"},
		{"bad timeout", "timeout: soon\n", "invalid timeout format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".toolwindow"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".toolwindow", "config.yaml"), []byte("workers: 2\n"), 0644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.DBPath = "from-file.db"

	level := "warn"
	logDir := "flag-logs"
	out := "flag-out"
	workers := 8
	timeout := 90 * time.Second
	noHistory := true

	cfg.MergeWithFlags(&level, &logDir, &out, &workers, &timeout, []string{"html,json", "json"}, &noHistory, nil)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "flag-logs", cfg.LogDir)
	assert.Equal(t, "flag-out", cfg.OutputDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{FormatHTML, FormatJSON}, cfg.Formats)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "from-file.db", cfg.History.DBPath, "nil flags leave config untouched")
}

func TestMergeWithFlags_NilKeepsConfig(t *testing.T) {
	cfg := DefaultConfig()
	noHistory := false
	cfg.MergeWithFlags(nil, nil, nil, nil, nil, nil, &noHistory, nil)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
		{"empty output", func(c *Config) { c.OutputDir = "" }, "output_dir"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers must be >= 0"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout must be >= 0"},
		{"no formats", func(c *Config) { c.Formats = nil }, "at least one output format"},
		{"unknown format", func(c *Config) { c.Formats = []string{"pdf"} }, `invalid format "pdf"`},
		{"too few bins", func(c *Config) { c.Charts.HistogramBins = 1 }, "histogram_bins"},
		{"negative keep", func(c *Config) { c.History.KeepRunsDays = -3 }, "keep_runs_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}

	t.Run("bins ignored when charts disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Charts.Enabled = false
		cfg.Charts.HistogramBins = 0
		assert.NoError(t, cfg.Validate())
	})
}
