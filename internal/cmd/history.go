package cmd

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/toolwindow/internal/config"
	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/harrison/toolwindow/internal/report"
	"github.com/harrison/toolwindow/internal/store"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the 'toolwindow history' parent command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Run history commands",
		Long: `Commands for viewing and managing recorded analysis runs.

Every analyze run stores its counts, per-open-type statistics, auto vs manual
comparison and transition counts in a local SQLite database.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryExportCommand())
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

// resolveHistoryDBPath returns the override when set, otherwise the configured
// or default history database path.
func resolveHistoryDBPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return config.GetHistoryDBPath(cfg.History.DBPath)
}

// openHistory opens the history store. It returns a nil store without error when
// no database exists yet, after telling the user so.
func openHistory(output io.Writer, dbPathOverride string) (*store.Store, error) {
	dbPath, err := resolveHistoryDBPath(dbPathOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to get history database path: %w", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No run history found at: %s\n", dbPath)
		return nil, nil
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return st, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newHistoryListCommand() *cobra.Command {
	var limit int
	var dbPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := cmd.OutOrStdout()
			st, err := openHistory(output, dbPath)
			if err != nil || st == nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(commandContext(cmd), limit, 0)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintf(output, "No runs recorded.\n")
				return nil
			}
			fmt.Fprint(output, formatRunList(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "Path to history database (for testing)")

	return cmd
}

// formatRunList renders runs as a fixed-width table
func formatRunList(runs []*store.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s  %-19s  %-30s %6s %9s %8s\n", "RUN", "CREATED", "SOURCE", "USERS", "INTERVALS", "CENSORED")
	for _, r := range runs {
		fmt.Fprintf(&b, "%-8s  %-19s  %-30s %6d %9d %8d\n",
			shortID(r.ID), formatTimestamp(r.CreatedAt), truncate(r.Source, 30),
			r.Users, r.Intervals, r.Censored)
	}
	return b.String()
}

func newHistoryShowCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the statistics of a recorded run",
		Long: `Show the counts, per-open-type statistics, auto vs manual comparison and
implicit-close transitions of a recorded run. A unique prefix of the run id is enough.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := cmd.OutOrStdout()
			st, err := openHistory(output, dbPath)
			if err != nil || st == nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(commandContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			printRun(output, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "Path to history database (for testing)")

	return cmd
}

// printRun formats and prints a recorded run
func printRun(w io.Writer, run *store.Run) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "\n=== Run %s ===\n\n", run.ID)
	fmt.Fprintf(w, "  Time: %s ", formatTimestamp(run.CreatedAt))
	gray.Fprintf(w, "(%s ago)\n", formatAge(time.Since(run.CreatedAt)))
	fmt.Fprintf(w, "  Source: %s\n", run.Source)
	if run.OutputDir != "" {
		fmt.Fprintf(w, "  Output: %s\n", run.OutputDir)
	}
	if run.ToolVersion != "" {
		fmt.Fprintf(w, "  Version: %s\n", run.ToolVersion)
	}
	fmt.Fprintf(w, "  Rows: %d read, %d dropped\n", run.RowsRead, run.RowsDropped)
	fmt.Fprintf(w, "  Events: %d\n", run.Events)
	fmt.Fprintf(w, "  Users: %d\n", run.Users)
	fmt.Fprintf(w, "  Intervals: %d (%d censored)\n", run.Intervals, run.Censored)
	fmt.Fprintf(w, "  Implicit closes: %d\n", run.Diagnostics.ImplicitCloses)
	fmt.Fprintf(w, "  Orphan closes ignored: %d\n", run.Diagnostics.OrphanCloses)
	fmt.Fprintf(w, "  Zero-length intervals dropped: %d\n", run.Diagnostics.DegenerateDropped)

	fmt.Fprintf(w, "\n")
	cyan.Fprintf(w, "Duration by open type (ms):\n")
	if len(run.Summaries) == 0 {
		fmt.Fprintf(w, "  No completed intervals with valid open_type.\n")
	} else {
		fmt.Fprint(w, formatSummaryTable(run.Summaries))
	}

	fmt.Fprintf(w, "\n")
	cyan.Fprintf(w, "Auto vs manual (Welch t-test on log duration):\n")
	if wr := run.Welch; wr != nil {
		fmt.Fprintf(w, "  t = %.3f, p = %.3e\n", wr.T, wr.P)
		fmt.Fprintf(w, "  Estimated mean(auto) / mean(manual) ≈ %.2fx\n", wr.Ratio)
	} else {
		fmt.Fprintf(w, "  %s\n", report.NoTestNote)
	}

	fmt.Fprintf(w, "\n")
	cyan.Fprintf(w, "Implicit-close transitions (prior -> next):\n")
	if run.Transitions.Total() == 0 {
		fmt.Fprintf(w, "  none\n")
	} else {
		fmt.Fprint(w, formatTransitionTable(run.Transitions))
	}
}

func newHistoryExportCommand() *cobra.Command {
	var format string
	var output string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export run history to JSON or CSV format",
		Long: `Export recorded runs to JSON or CSV format for external analysis or backup.

Without a run id every run is exported. If no output file is specified,
data is written to stdout.

Examples:
  # Export all runs to JSON
  toolwindow history export --format json --output runs.json

  # Export one run to CSV on stdout
  toolwindow history export 3f2a --format csv

Supported formats:
  - json: JSON array of runs, including statistics and transitions
  - csv: one row per run with its counts`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("invalid format '%s': format must be 'json' or 'csv'", format)
			}

			st, err := openHistory(cmd.ErrOrStderr(), dbPath)
			if err != nil || st == nil {
				return err
			}
			defer st.Close()

			runs, err := loadRunsForExport(commandContext(cmd), st, args)
			if err != nil {
				return err
			}

			var writer io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				writer = file
			}

			switch format {
			case "json":
				return exportRunsJSON(writer, runs)
			default:
				return exportRunsCSV(writer, runs)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format (json|csv)")
	cmd.Flags().StringVar(&output, "output", "", "Output file path (stdout if not specified)")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "Path to history database (for testing)")

	return cmd
}

// loadRunsForExport loads the named run, or every run, with detail sections
func loadRunsForExport(ctx context.Context, st *store.Store, args []string) ([]*store.Run, error) {
	if len(args) == 1 {
		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return nil, fmt.Errorf("get run: %w", err)
		}
		return []*store.Run{run}, nil
	}

	listed, err := st.ListRuns(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]*store.Run, 0, len(listed))
	for _, r := range listed {
		run, err := st.GetRun(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", r.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

type runSummaryDoc struct {
	OpenType models.OpenType `json:"open_type"`
	N        int             `json:"n"`
	MeanMS   *float64        `json:"mean_ms"`
	MedianMS *float64        `json:"median_ms"`
	P25MS    *float64        `json:"p25_ms"`
	P75MS    *float64        `json:"p75_ms"`
	P90MS    *float64        `json:"p90_ms"`
	StdMS    *float64        `json:"std_ms"`
}

type runWelchDoc struct {
	T       *float64 `json:"t"`
	DF      *float64 `json:"df"`
	P       *float64 `json:"p"`
	Ratio   *float64 `json:"ratio"`
	NAuto   int      `json:"n_auto"`
	NManual int      `json:"n_manual"`
}

type runDoc struct {
	ID          string                                      `json:"run_id"`
	CreatedAt   time.Time                                   `json:"created_at"`
	Source      string                                      `json:"source"`
	OutputDir   string                                      `json:"output_dir,omitempty"`
	ToolVersion string                                      `json:"tool_version,omitempty"`
	RowsRead    int                                         `json:"rows_read"`
	RowsDropped int                                         `json:"rows_dropped"`
	Events      int                                         `json:"events"`
	Users       int                                         `json:"users"`
	Intervals   int                                         `json:"intervals"`
	Censored    int                                         `json:"censored"`
	Diagnostics interval.Diagnostics                        `json:"diagnostics"`
	Summaries   []runSummaryDoc                             `json:"summary_by_open_type"`
	Transitions map[models.OpenType]map[models.OpenType]int `json:"implicit_transitions"`
	Welch       *runWelchDoc                                `json:"welch"`
}

// jsonFloat maps NaN onto a JSON null
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newRunDoc(run *store.Run) runDoc {
	doc := runDoc{
		ID:          run.ID,
		CreatedAt:   run.CreatedAt,
		Source:      run.Source,
		OutputDir:   run.OutputDir,
		ToolVersion: run.ToolVersion,
		RowsRead:    run.RowsRead,
		RowsDropped: run.RowsDropped,
		Events:      run.Events,
		Users:       run.Users,
		Intervals:   run.Intervals,
		Censored:    run.Censored,
		Diagnostics: run.Diagnostics,
		Summaries:   make([]runSummaryDoc, 0, len(run.Summaries)),
		Transitions: make(map[models.OpenType]map[models.OpenType]int),
	}
	for _, s := range run.Summaries {
		doc.Summaries = append(doc.Summaries, runSummaryDoc{
			OpenType: s.OpenType,
			N:        s.N,
			MeanMS:   jsonFloat(s.Mean),
			MedianMS: jsonFloat(s.Median),
			P25MS:    jsonFloat(s.P25),
			P75MS:    jsonFloat(s.P75),
			P90MS:    jsonFloat(s.P90),
			StdMS:    jsonFloat(s.Std),
		})
	}
	for prior, row := range run.Transitions {
		doc.Transitions[prior] = make(map[models.OpenType]int, len(row))
		for next, n := range row {
			doc.Transitions[prior][next] = n
		}
	}
	if w := run.Welch; w != nil {
		doc.Welch = &runWelchDoc{
			T:       jsonFloat(w.T),
			DF:      jsonFloat(w.DF),
			P:       jsonFloat(w.P),
			Ratio:   jsonFloat(w.Ratio),
			NAuto:   w.NAuto,
			NManual: w.NManual,
		}
	}
	return doc
}

func exportRunsJSON(writer io.Writer, runs []*store.Run) error {
	docs := make([]runDoc, 0, len(runs))
	for _, r := range runs {
		docs = append(docs, newRunDoc(r))
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(docs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func exportRunsCSV(writer io.Writer, runs []*store.Run) error {
	csvWriter := csv.NewWriter(writer)

	header := []string{
		"run_id",
		"created_at",
		"source",
		"output_dir",
		"tool_version",
		"rows_read",
		"rows_dropped",
		"events",
		"users",
		"intervals",
		"censored",
		"implicit_closes",
		"orphan_closes",
		"degenerate_dropped",
		"welch_ratio",
		"welch_p",
	}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range runs {
		ratio, p := "", ""
		if r.Welch != nil {
			ratio = csvFloat(r.Welch.Ratio)
			p = csvFloat(r.Welch.P)
		}
		record := []string{
			r.ID,
			r.CreatedAt.Format(time.RFC3339),
			r.Source,
			r.OutputDir,
			r.ToolVersion,
			strconv.Itoa(r.RowsRead),
			strconv.Itoa(r.RowsDropped),
			strconv.Itoa(r.Events),
			strconv.Itoa(r.Users),
			strconv.Itoa(r.Intervals),
			strconv.Itoa(r.Censored),
			strconv.Itoa(r.Diagnostics.ImplicitCloses),
			strconv.Itoa(r.Diagnostics.OrphanCloses),
			strconv.Itoa(r.Diagnostics.DegenerateDropped),
			ratio,
			p,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func newHistoryClearCommand() *cobra.Command {
	var clearAll bool
	var olderThanDays int
	var yes bool
	var dbPath string

	cmd := &cobra.Command{
		Use:   "clear [run-id]",
		Short: "Delete recorded runs",
		Long: `Delete one run, runs older than a number of days, or the entire history.

Examples:
  # Delete one run (requires confirmation)
  toolwindow history clear 3f2a

  # Delete runs older than 30 days
  toolwindow history clear --older-than 30

  # Delete everything without prompting
  toolwindow history clear --all --yes`,
		Args: func(cmd *cobra.Command, args []string) error {
			selectors := len(args)
			if clearAll {
				selectors++
			}
			if olderThanDays > 0 {
				selectors++
			}
			if cmd.Flags().Changed("older-than") && olderThanDays <= 0 {
				return fmt.Errorf("--older-than must be a positive number of days")
			}
			if selectors == 0 {
				return fmt.Errorf("requires a run id, --all or --older-than")
			}
			if selectors > 1 {
				return fmt.Errorf("specify only one of: run id, --all, --older-than")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(cmd, args, clearAll, olderThanDays, yes, dbPath)
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Delete every recorded run")
	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than this many days")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "Path to history database (for testing)")

	return cmd
}

// runHistoryClear executes the clear command
func runHistoryClear(cmd *cobra.Command, args []string, clearAll bool, olderThanDays int, yes bool, dbPathOverride string) error {
	output := cmd.OutOrStdout()
	ctx := commandContext(cmd)

	st, err := openHistory(output, dbPathOverride)
	if err != nil || st == nil {
		return err
	}
	defer st.Close()

	var prompt string
	var runID string
	switch {
	case clearAll:
		prompt = "WARNING: This will delete ALL recorded runs.\n"
	case olderThanDays > 0:
		prompt = fmt.Sprintf("This will delete all runs older than %d day(s).\n", olderThanDays)
	default:
		runID, err = st.ResolveRunID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("resolve run: %w", err)
		}
		prompt = fmt.Sprintf("This will delete run: %s\n", runID)
	}

	fmt.Fprint(output, prompt)
	if !yes && !confirmAction(cmd.InOrStdin(), output) {
		fmt.Fprintf(output, "Operation cancelled.\n")
		return nil
	}

	var deleted int64
	switch {
	case clearAll:
		deleted, err = st.ClearAll(ctx)
	case olderThanDays > 0:
		deleted, err = st.CleanupOldRuns(ctx, olderThanDays)
	default:
		err = st.DeleteRun(ctx, runID)
		deleted = 1
	}
	if err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}

	runText := "run"
	if deleted != 1 {
		runText = "runs"
	}
	fmt.Fprintf(output, "Deleted %d %s.\n", deleted, runText)
	return nil
}

// confirmAction prompts the user for confirmation
func confirmAction(input io.Reader, output io.Writer) bool {
	scanner := bufio.NewScanner(input)

	fmt.Fprintf(output, "Continue? [y/N]: ")

	if !scanner.Scan() {
		return false
	}

	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-(n-3):]
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatAge renders an elapsed time coarsely, e.g. "3h", "2d"
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
