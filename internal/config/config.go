package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats understood by the report writer
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ChartsConfig controls the chart series export
type ChartsConfig struct {
	// Enabled writes charts.json next to the tabular outputs
	Enabled bool `yaml:"enabled"`

	// HistogramBins is the number of log-spaced histogram edges
	HistogramBins int `yaml:"histogram_bins"`
}

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every analysis run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database. Empty means $TOOLWINDOW_HOME/history/runs.db
	DBPath string `yaml:"db_path"`

	// KeepRunsDays prunes runs older than this many days after each analysis (0 = keep all)
	KeepRunsDays int `yaml:"keep_runs_days"`
}

// Config represents toolwindow configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// OutputDir is the directory analysis outputs are written to
	OutputDir string `yaml:"output_dir"`

	// Workers bounds concurrent per-user reconstruction (0 = number of CPUs)
	Workers int `yaml:"workers"`

	// Timeout is the maximum analysis time (0 = no limit)
	Timeout time.Duration `yaml:"timeout"`

	// Formats lists the output formats to write
	Formats []string `yaml:"formats"`

	Charts  ChartsConfig  `yaml:"charts"`
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogDir:    ".toolwindow/logs",
		OutputDir: ".",
		Workers:   0,
		Timeout:   0,
		Formats:   []string{FormatCSV},
		Charts: ChartsConfig{
			Enabled:       true,
			HistogramBins: 50,
		},
		History: HistoryConfig{
			Enabled:      true,
			DBPath:       "",
			KeepRunsDays: 0,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use a temporary struct to handle duration parsing
	type yamlConfig struct {
		LogLevel  string        `yaml:"log_level"`
		LogDir    string        `yaml:"log_dir"`
		OutputDir string        `yaml:"output_dir"`
		Workers   int           `yaml:"workers"`
		Timeout   string        `yaml:"timeout"`
		Formats   []string      `yaml:"formats"`
		Charts    ChartsConfig  `yaml:"charts"`
		History   HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.Workers != 0 {
		cfg.Workers = yamlCfg.Workers
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if len(yamlCfg.Formats) > 0 {
		cfg.Formats = normalizeFormats(yamlCfg.Formats)
	}

	// Nested sections: only keys present in the file override defaults,
	// so an explicit false or 0 is honored.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["charts"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.Charts.Enabled = yamlCfg.Charts.Enabled
			}
			if _, exists := section["histogram_bins"]; exists {
				cfg.Charts.HistogramBins = yamlCfg.Charts.HistogramBins
			}
		}
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
			if _, exists := section["keep_runs_days"]; exists {
				cfg.History.KeepRunsDays = yamlCfg.History.KeepRunsDays
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .toolwindow/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".toolwindow", "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel, logDir, outputDir *string, workers *int, timeout *time.Duration, formats []string, noHistory *bool, dbPath *string) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if outputDir != nil {
		c.OutputDir = *outputDir
	}
	if workers != nil {
		c.Workers = *workers
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if len(formats) > 0 {
		c.Formats = normalizeFormats(formats)
	}
	if noHistory != nil && *noHistory {
		c.History.Enabled = false
	}
	if dbPath != nil {
		c.History.DBPath = *dbPath
	}
}

// normalizeFormats lowercases, maps "md" to markdown, splits comma lists and drops duplicates
func normalizeFormats(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range in {
		for _, f := range strings.Split(item, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "md" {
				f = FormatMarkdown
			}
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	if len(c.Formats) == 0 {
		return fmt.Errorf("at least one output format is required")
	}
	for _, f := range c.Formats {
		switch f {
		case FormatCSV, FormatJSON, FormatMarkdown, FormatHTML:
		default:
			return fmt.Errorf("invalid format %q, must be one of: csv, json, markdown, html", f)
		}
	}

	if c.Charts.Enabled && c.Charts.HistogramBins < 2 {
		return fmt.Errorf("charts.histogram_bins must be >= 2, got %d", c.Charts.HistogramBins)
	}

	if c.History.KeepRunsDays < 0 {
		return fmt.Errorf("history.keep_runs_days must be >= 0, got %d", c.History.KeepRunsDays)
	}

	return nil
}
