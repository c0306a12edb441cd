// Package fileutil expands command-line inputs into event log files.
//
// Arguments naming a file are passed through unchanged. Arguments naming a
// directory are scanned for event logs (.csv files), optionally recursing into
// subdirectories and filtering file names with a regular expression.
//
// # Scanning Rules
//
//   - Extensions are matched case-insensitively (".csv" and ".CSV")
//   - Hidden directories and files (leading ".") are skipped
//   - Directories in ScanOptions.ExcludeDirs are skipped
//   - Pattern matches the file name without its extension
//   - Results are absolute paths sorted alphabetically
//   - Unreadable entries are collected in ScanResult.Errors and scanning continues
//
// # Usage
//
//	files, err := fileutil.ExpandInputs(args, fileutil.ScanOptions{Recursive: true})
//	if err != nil {
//	    return err
//	}
//	for _, path := range files {
//	    // load path
//	}
package fileutil
