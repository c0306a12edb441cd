package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/harrison/toolwindow/internal/display"
	"github.com/harrison/toolwindow/internal/fileutil"
	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/normalize"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	var recursive bool
	var pattern string

	cmd := &cobra.Command{
		Use:   "validate <events.csv|dir>...",
		Short: "Validate one or more event logs without writing outputs",
		Long: `Load and check event logs, reporting:
  - Required columns (user_id, timestamp, event or event_id, open_type)
  - Rows dropped for invalid timestamps, unknown events or missing open types
  - Reconstruction contract violations
  - Close events with no open window and zero-length intervals

Directories are scanned for .csv event logs.

Examples:
  toolwindow validate events.csv
  toolwindow validate day1.csv day2.csv
  toolwindow validate logs/ --recursive --pattern '^2024-'

Exit code: 0 if every file can be analyzed, 1 otherwise`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			paths, err := fileutil.ExpandInputs(args, fileutil.ScanOptions{
				Pattern:   pattern,
				Recursive: recursive,
			})
			if err != nil {
				return err
			}
			return validateFiles(ctx, paths, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Scan directories recursively")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only validate files whose name (without extension) matches this regex")

	return cmd
}

// validateFiles validates every path and fails if any of them failed
func validateFiles(ctx context.Context, paths []string, output io.Writer) error {
	failed := 0
	for i, path := range paths {
		if i > 0 {
			fmt.Fprintf(output, "\n")
		}
		if err := validateEventFile(ctx, path, output); err != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d file(s)", failed, len(paths))
	}
	return nil
}

// validateEventFile loads path and runs the reconstructor over it.
// Returns error if the file cannot be analyzed, nil otherwise.
func validateEventFile(ctx context.Context, path string, output io.Writer) error {
	table, err := normalize.Load(path)
	if err != nil {
		fmt.Fprintf(output, "✗ Failed to load events from %s\n", path)
		fmt.Fprintf(output, "  Error: %v\n", err)
		return fmt.Errorf("load error: %w", err)
	}

	fmt.Fprintf(output, "✓ Validating events from %s\n", path)
	fmt.Fprintf(output, "✓ Loaded %d event(s) for %d user(s) from %d row(s)\n",
		len(table.Events), table.Users(), table.Report.RowsRead)

	if warning, ok := display.WarnDroppedRows(path, table.Report); ok {
		warning.Display(output)
	}

	if len(table.Events) == 0 {
		fmt.Fprintf(output, "\n✗ Validation failed for %s\n", path)
		fmt.Fprintf(output, "  ✗ No usable events\n")
		return fmt.Errorf("no usable events in %s", path)
	}

	result, err := interval.ReconstructAll(ctx, table.Events, interval.Options{})
	if err != nil {
		fmt.Fprintf(output, "\n✗ Validation failed for %s\n", path)
		fmt.Fprintf(output, "  ✗ %v\n", err)
		return err
	}

	completed := 0
	for _, iv := range result.Intervals {
		if iv.Completed() {
			completed++
		}
	}
	fmt.Fprintf(output, "✓ Reconstructed %d interval(s): %d completed, %d censored\n",
		len(result.Intervals), completed, result.Diagnostics.Censored)

	diag := result.Diagnostics
	if diag.OrphanCloses > 0 || diag.DegenerateDropped > 0 {
		display.Warning{
			Title:   "Reconstruction Anomalies",
			Message: "Some events did not produce an interval",
			Details: []string{
				fmt.Sprintf("%d close event(s) with no open window", diag.OrphanCloses),
				fmt.Sprintf("%d zero-length interval(s)", diag.DegenerateDropped),
			},
		}.Display(output)
	}

	fmt.Fprintf(output, "\n✓ Event log is valid!\n")
	return nil
}
