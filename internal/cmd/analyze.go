package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/toolwindow/internal/config"
	"github.com/harrison/toolwindow/internal/display"
	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/logger"
	"github.com/harrison/toolwindow/internal/normalize"
	"github.com/harrison/toolwindow/internal/report"
	"github.com/harrison/toolwindow/internal/store"
	"github.com/spf13/cobra"
)

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <events.csv>",
		Short: "Reconstruct intervals and write the analysis outputs",
		Long: `Analyze a tool window event log.

The analyze command normalizes the event table, reconstructs per-user usage
intervals in parallel, and writes:

  toolwindow_intervals.csv         one row per interval
  summary_by_open_type.csv         duration statistics per open type
  implicit_transition_counts.csv   what followed each implicitly closed window
  charts.json                      series behind the standard charts

Additional formats (json, markdown, html) write report.json, report.md and
report.html. Each run is recorded in the run history unless --no-history is set.

Configuration is loaded from .toolwindow/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  toolwindow analyze events.csv
  toolwindow analyze events.csv --out results --format csv,html
  toolwindow analyze events.csv --workers 4 --timeout 5m
  toolwindow analyze events.csv --no-history --log-level debug`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .toolwindow/config.yaml)")
	cmd.Flags().String("out", "", "Directory to write outputs to")
	cmd.Flags().Int("workers", 0, "Maximum concurrent per-user reconstructions (0 = number of CPUs)")
	cmd.Flags().StringSlice("format", nil, "Output formats: csv, json, markdown, html (repeatable)")
	cmd.Flags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().String("timeout", "", "Maximum analysis time (e.g., 30s, 5m)")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the run history")
	cmd.Flags().String("db-path", "", "Path to history database (default: $TOOLWINDOW_HOME/history/runs.db)")

	return cmd
}

// loadConfig loads the config file named by --config, or the default one, and merges
// the flags that were set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	stringFlag := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}

	var workersPtr *int
	if cmd.Flags().Changed("workers") {
		workers, _ := cmd.Flags().GetInt("workers")
		workersPtr = &workers
	}

	var timeoutPtr *time.Duration
	if timeoutStr := stringFlag("timeout"); timeoutStr != nil {
		timeout, err := time.ParseDuration(*timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", *timeoutStr, err)
		}
		timeoutPtr = &timeout
	}

	var noHistoryPtr *bool
	if cmd.Flags().Changed("no-history") {
		noHistory, _ := cmd.Flags().GetBool("no-history")
		noHistoryPtr = &noHistory
	}

	formats, _ := cmd.Flags().GetStringSlice("format")

	cfg.MergeWithFlags(stringFlag("log-level"), stringFlag("log-dir"), stringFlag("out"),
		workersPtr, timeoutPtr, formats, noHistoryPtr, stringFlag("db-path"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runAnalyze implements the analyze command logic
func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	source := args[0]
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	consoleLog := logger.NewConsoleLogger(out, cfg.LogLevel)
	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMultiLogger(consoleLog, fileLog)

	runID := uuid.NewString()
	log.LogInfo(fmt.Sprintf("Analyzing %s (run %s)", source, runID))

	table, err := normalize.Load(source)
	if err != nil {
		log.LogError(err.Error())
		return fmt.Errorf("failed to load events: %w", err)
	}
	log.LogLoadReport(table.Report)

	result, err := interval.ReconstructAll(ctx, table.Events, interval.Options{
		Workers:  cfg.Workers,
		Progress: throttledProgress(log),
	})
	if err != nil {
		log.LogError(err.Error())
		return err
	}
	log.LogDiagnostics(result.Diagnostics)

	bins := -1
	if cfg.Charts.Enabled {
		bins = cfg.Charts.HistogramBins
	}
	rep, err := report.Build(report.Input{
		RunID:         runID,
		Source:        source,
		Table:         table,
		Result:        result,
		HistogramBins: bins,
	})
	if err != nil {
		return err
	}
	if rep.Completed() == 0 {
		log.LogWarn("No completed intervals with valid open_type")
	}

	printAnalysis(out, rep)

	writer := &report.Writer{}
	planned, err := writer.Plan(rep, cfg.Formats)
	if err != nil {
		return err
	}
	progress := display.NewProgressIndicator(out, len(planned))
	writer.OnWrite = progress.Step

	fmt.Fprintln(out)
	progress.Start()
	paths, err := writer.WriteAll(ctx, rep, cfg.OutputDir, cfg.Formats)
	if err != nil {
		log.LogError(err.Error())
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	progress.Complete(cfg.OutputDir)

	if cfg.History.Enabled {
		if err := recordRun(ctx, cfg, rep, log); err != nil {
			log.LogWarn(fmt.Sprintf("Failed to record run history: %v", err))
		}
	}

	log.LogRunSummary(logger.RunSummary{
		RunID:      runID,
		Source:     source,
		Users:      rep.Users,
		Intervals:  len(rep.Intervals),
		Censored:   rep.Diagnostics.Censored,
		Comparison: rep.ComparisonLine(),
		Files:      paths,
		Duration:   time.Since(start),
	})
	return nil
}

// throttledProgress forwards reconstruction progress to log in 10% steps.
// Calls reporting no more than the last logged value are dropped. The returned
// func is safe for concurrent use.
func throttledProgress(log logger.Logger) func(done, total int) {
	var mu sync.Mutex
	lastStep, lastDone := -1, 0
	return func(done, total int) {
		if total <= 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if done <= lastDone {
			return
		}
		step := done * 10 / total
		if step == lastStep && done != total {
			return
		}
		lastStep, lastDone = step, done
		log.LogProgress(done, total)
	}
}

// recordRun stores the run in the history database and prunes expired runs
func recordRun(ctx context.Context, cfg *config.Config, rep *report.Report, log logger.Logger) error {
	dbPath, err := config.GetHistoryDBPath(cfg.History.DBPath)
	if err != nil {
		return err
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run := &store.Run{
		ID:          rep.RunID,
		Source:      rep.Source,
		OutputDir:   cfg.OutputDir,
		ToolVersion: Version,
		CreatedAt:   rep.GeneratedAt,
		RowsRead:    rep.Load.RowsRead,
		RowsDropped: rep.Load.Dropped(),
		Events:      rep.Events,
		Users:       rep.Users,
		Intervals:   len(rep.Intervals),
		Censored:    rep.Diagnostics.Censored,
		Diagnostics: rep.Diagnostics,
		Summaries:   rep.Summaries,
		Transitions: rep.Transitions,
		Welch:       rep.Welch,
	}
	if err := st.RecordRun(ctx, run); err != nil {
		return err
	}
	log.LogDebug(fmt.Sprintf("Recorded run %s in %s", run.ID, dbPath))

	if cfg.History.KeepRunsDays > 0 {
		deleted, err := st.CleanupOldRuns(ctx, cfg.History.KeepRunsDays)
		if err != nil {
			return err
		}
		if deleted > 0 {
			log.LogInfo(fmt.Sprintf("Pruned %d run(s) older than %d day(s) from history", deleted, cfg.History.KeepRunsDays))
		}
	}
	return nil
}
