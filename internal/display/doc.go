// Package display provides terminal UI utilities for warnings and output progress.
//
// # Warning Messages
//
// Display warnings with optional components:
//
//	warning := display.Warning{
//	    Title:      "Rows Dropped",
//	    Message:    "3 of 120 rows could not be normalized",
//	    Details:    []string{"2 invalid timestamp", "1 unknown event value"},
//	    Suggestion: "Check the export for truncated lines",
//	}
//	warning.Display(os.Stderr)
//
// Or build one from a load report:
//
//	if w, ok := display.WarnDroppedRows(path, table.Report); ok {
//	    w.Display(cmd.ErrOrStderr())
//	}
//
// # Output Progress
//
//	progress := display.NewProgressIndicator(os.Stdout, len(planned))
//	writer := &report.Writer{OnWrite: progress.Step}
//	progress.Start()
//	writer.WriteAll(ctx, rep, dir, formats)
//	progress.Complete(dir)
//
// Colors are plain ANSI escape codes: cyan for progress, green for success and
// yellow for warnings.
package display
