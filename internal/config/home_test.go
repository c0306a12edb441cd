package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestGetHomeWithEnvVar tests TOOLWINDOW_HOME env var takes precedence
func TestGetHomeWithEnvVar(t *testing.T) {
	customHome := filepath.Join(t.TempDir(), "custom")
	t.Setenv(HomeEnv, customHome)

	home, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome() error = %v", err)
	}
	if home != customHome {
		t.Errorf("GetHome() = %q, want %q", home, customHome)
	}
	if _, err := os.Stat(customHome); err != nil {
		t.Errorf("expected home directory to be created: %v", err)
	}
}

// TestGetHomeFallsBackToWorkingDir tests the ./.toolwindow fallback
func TestGetHomeFallsBackToWorkingDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	home, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome() error = %v", err)
	}

	// macOS temp dirs resolve through /private
	want, _ := filepath.EvalSymlinks(filepath.Join(dir, ".toolwindow"))
	got, _ := filepath.EvalSymlinks(home)
	if got != want {
		t.Errorf("GetHome() = %q, want %q", got, want)
	}
}

func TestGetHistoryDBPath(t *testing.T) {
	customHome := t.TempDir()
	t.Setenv(HomeEnv, customHome)

	path, err := GetHistoryDBPath("")
	if err != nil {
		t.Fatalf("GetHistoryDBPath() error = %v", err)
	}
	if want := filepath.Join(customHome, "history", "runs.db"); path != want {
		t.Errorf("GetHistoryDBPath() = %q, want %q", path, want)
	}

	path, err = GetHistoryDBPath("explicit.db")
	if err != nil || path != "explicit.db" {
		t.Errorf("GetHistoryDBPath(explicit) = %q, %v", path, err)
	}
}
