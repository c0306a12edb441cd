package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv names the environment variable that overrides the toolwindow home directory
const HomeEnv = "TOOLWINDOW_HOME"

// GetHome returns the toolwindow home directory
// Priority order:
//  1. TOOLWINDOW_HOME environment variable (if set)
//  2. .toolwindow in the current working directory
//
// The directory is created if it doesn't exist
func GetHome() (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, ".toolwindow")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create toolwindow home directory: %w", err)
	}
	return home, nil
}

// GetHistoryDBPath returns the run history database path.
// A non-empty configured path wins; otherwise $TOOLWINDOW_HOME/history/runs.db.
func GetHistoryDBPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history", "runs.db"), nil
}
