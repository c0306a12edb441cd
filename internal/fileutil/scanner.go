package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// EventLogExtensions are the file extensions treated as event logs when scanning
var EventLogExtensions = []string{".csv"}

// ScanOptions configures how directories are scanned for event logs
type ScanOptions struct {
	// Pattern is a regex matched against file names without extension
	Pattern string
	// Extensions overrides EventLogExtensions when non-empty
	Extensions []string
	// Recursive enables scanning subdirectories
	Recursive bool
	// ExcludeDirs lists directory names to skip
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = top level only)
	MaxDepth int
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the absolute paths of all matched files
	Files []string
	// Errors contains non-fatal errors encountered during scanning
	Errors []error
}

type matcher struct {
	pattern    *regexp.Regexp
	extensions map[string]bool
	exclude    map[string]bool
}

func newMatcher(opts ScanOptions) (*matcher, error) {
	m := &matcher{
		extensions: make(map[string]bool),
		exclude:    make(map[string]bool),
	}

	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		m.pattern = re
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = EventLogExtensions
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.extensions[strings.ToLower(ext)] = true
	}

	for _, dir := range opts.ExcludeDirs {
		m.exclude[dir] = true
	}
	return m, nil
}

func (m *matcher) matchFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := filepath.Ext(name)
	if !m.extensions[strings.ToLower(ext)] {
		return false
	}
	if m.pattern != nil && !m.pattern.MatchString(strings.TrimSuffix(name, ext)) {
		return false
	}
	return true
}

// ScanDirectory finds the event logs under dir
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if m.exclude[d.Name()] || strings.HasPrefix(d.Name(), ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				rel, _ := filepath.Rel(dir, path)
				if strings.Count(rel, string(filepath.Separator))+1 >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !m.matchFile(d.Name()) {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}
		result.Files = append(result.Files, absPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}

// ExpandInputs replaces every directory in paths with the event logs it contains.
// File paths are kept as given, in order, and duplicates are removed.
// A directory holding no event logs is an error.
func ExpandInputs(paths []string, opts ScanOptions) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := p
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if !seen[key] {
			seen[key] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			// missing files are reported by the loader
			add(p)
			continue
		}

		result, err := ScanDirectory(p, opts)
		if err != nil {
			return nil, err
		}
		if len(result.Files) == 0 {
			return nil, fmt.Errorf("no event logs found in %s", p)
		}
		for _, f := range result.Files {
			add(f)
		}
	}
	return files, nil
}
