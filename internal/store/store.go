// Package store keeps the history of analysis runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/toolwindow/internal/interval"
	"github.com/harrison/toolwindow/internal/models"
	"github.com/harrison/toolwindow/internal/stats"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrRunNotFound is returned when no run matches the requested id
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an id prefix matches more than one run
	ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")
)

// Run is one recorded analysis run
type Run struct {
	ID          string
	Source      string
	OutputDir   string
	ToolVersion string
	CreatedAt   time.Time

	RowsRead    int
	RowsDropped int
	Events      int
	Users       int
	Intervals   int
	Censored    int
	Diagnostics interval.Diagnostics

	// Detail sections, populated by GetRun only
	Summaries   []stats.OpenTypeSummary
	Transitions interval.TransitionMatrix
	Welch       *stats.WelchResult
}

// Store manages the SQLite database of run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		// writers take the lock at BEGIN so concurrent runs queue on busy_timeout
		dsn += "?_txlock=immediate&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// every pooled connection to :memory: would otherwise get its own empty database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run with its summaries, transition counts and Welch result.
// An empty ID is replaced by a new UUID and a zero CreatedAt by the current time.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, source, output_dir, tool_version, created_at, rows_read, rows_dropped, events, users,
		 intervals, censored, implicit_closes, orphan_closes, degenerate_dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.OutputDir, run.ToolVersion, run.CreatedAt,
		run.RowsRead, run.RowsDropped, run.Events, run.Users,
		run.Intervals, run.Censored,
		run.Diagnostics.ImplicitCloses, run.Diagnostics.OrphanCloses, run.Diagnostics.DegenerateDropped)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, sum := range run.Summaries {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_summaries
			(run_id, open_type, n, mean_ms, median_ms, p25_ms, p75_ms, p90_ms, std_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, string(sum.OpenType), sum.N,
			nullable(sum.Mean), nullable(sum.Median), nullable(sum.P25),
			nullable(sum.P75), nullable(sum.P90), nullable(sum.Std))
		if err != nil {
			return fmt.Errorf("insert summary %s: %w", sum.OpenType, err)
		}
	}

	for _, from := range run.Transitions.Rows() {
		for _, to := range run.Transitions.Columns() {
			n := run.Transitions.Count(from, to)
			if n == 0 {
				continue
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO run_transitions (run_id, from_type, to_type, count)
				VALUES (?, ?, ?, ?)`, run.ID, string(from), string(to), n)
			if err != nil {
				return fmt.Errorf("insert transition %s->%s: %w", from, to, err)
			}
		}
	}

	if w := run.Welch; w != nil {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_welch
			(run_id, t, df, p, mean_log_diff, ratio, n_auto, n_manual)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, nullable(w.T), nullable(w.DF), nullable(w.P),
			nullable(w.MeanLogDiff), nullable(w.Ratio), w.NAuto, w.NManual)
		if err != nil {
			return fmt.Errorf("insert welch result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, source, COALESCE(output_dir, ''), COALESCE(tool_version, ''), created_at,
	rows_read, rows_dropped, events, users, intervals, censored,
	implicit_closes, orphan_closes, degenerate_dropped`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	err := row.Scan(&r.ID, &r.Source, &r.OutputDir, &r.ToolVersion, &r.CreatedAt,
		&r.RowsRead, &r.RowsDropped, &r.Events, &r.Users, &r.Intervals, &r.Censored,
		&r.Diagnostics.ImplicitCloses, &r.Diagnostics.OrphanCloses, &r.Diagnostics.DegenerateDropped)
	if err != nil {
		return nil, err
	}
	r.Diagnostics.Censored = r.Censored
	return r, nil
}

// ListRuns returns runs newest first, without detail sections.
// A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// CountRuns returns the number of recorded runs
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// ResolveRunID expands a full id or a unique id prefix to the stored run id
func (s *Store) ResolveRunID(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs
		WHERE run_id = ? OR substr(run_id, 1, ?) = ? LIMIT 3`, idOrPrefix, len(idOrPrefix), idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		if id == idOrPrefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate run ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, idOrPrefix)
	}
}

// GetRun loads a run and its detail sections. id may be a unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	fullID, err := s.ResolveRunID(ctx, id)
	if err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, fullID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	if run.Summaries, err = s.getSummaries(ctx, fullID); err != nil {
		return nil, err
	}
	if run.Transitions, err = s.getTransitions(ctx, fullID); err != nil {
		return nil, err
	}
	if run.Welch, err = s.getWelch(ctx, fullID); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) getSummaries(ctx context.Context, runID string) ([]stats.OpenTypeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT open_type, n, mean_ms, median_ms, p25_ms, p75_ms, p90_ms, std_ms
		FROM run_summaries WHERE run_id = ?
		ORDER BY CASE open_type WHEN 'manual' THEN 0 WHEN 'auto' THEN 1 ELSE 2 END`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []stats.OpenTypeSummary
	for rows.Next() {
		var ot string
		var sum stats.OpenTypeSummary
		var mean, median, p25, p75, p90, std sql.NullFloat64
		if err := rows.Scan(&ot, &sum.N, &mean, &median, &p25, &p75, &p90, &std); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.OpenType = models.OpenType(ot)
		sum.Mean, sum.Median = fromNullable(mean), fromNullable(median)
		sum.P25, sum.P75, sum.P90 = fromNullable(p25), fromNullable(p75), fromNullable(p90)
		sum.Std = fromNullable(std)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) getTransitions(ctx context.Context, runID string) (interval.TransitionMatrix, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_type, to_type, count FROM run_transitions WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	m := interval.TransitionMatrix{}
	for rows.Next() {
		var from, to string
		var n int
		if err := rows.Scan(&from, &to, &n); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		prior := models.OpenType(from)
		if m[prior] == nil {
			m[prior] = make(map[models.OpenType]int)
		}
		m[prior][models.OpenType(to)] = n
	}
	return m, rows.Err()
}

func (s *Store) getWelch(ctx context.Context, runID string) (*stats.WelchResult, error) {
	var t, df, p, diff, ratio sql.NullFloat64
	w := &stats.WelchResult{}
	err := s.db.QueryRowContext(ctx, `SELECT t, df, p, mean_log_diff, ratio, n_auto, n_manual
		FROM run_welch WHERE run_id = ?`, runID).Scan(&t, &df, &p, &diff, &ratio, &w.NAuto, &w.NManual)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query welch result: %w", err)
	}
	w.T, w.DF, w.P = fromNullable(t), fromNullable(df), fromNullable(p)
	w.MeanLogDiff, w.Ratio = fromNullable(diff), fromNullable(ratio)
	return w, nil
}

// DeleteRun removes a run and its detail rows. id may be a unique prefix.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	fullID, err := s.ResolveRunID(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.deleteWhere(ctx, `run_id = ?`, fullID)
	return err
}

// DeleteRunsOlderThan removes runs created before cutoff and returns how many were removed
func (s *Store) DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(ctx, `created_at < ?`, cutoff.UTC())
}

// CleanupOldRuns removes runs older than keepDays days. 0 or negative keeps everything.
func (s *Store) CleanupOldRuns(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	return s.DeleteRunsOlderThan(ctx, time.Now().AddDate(0, 0, -keepDays))
}

// ClearAll removes every recorded run and returns how many were removed
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, `1 = 1`)
}

// deleteWhere deletes the runs matching cond from runs and every detail table
func (s *Store) deleteWhere(ctx context.Context, cond string, args ...interface{}) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"run_summaries", "run_transitions", "run_welch"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE run_id IN (SELECT run_id FROM runs WHERE %s)`, table, cond)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE `+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return deleted, nil
}

// nullable maps NaN and infinities to NULL
func nullable(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
