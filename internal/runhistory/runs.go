package runhistory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Counts mirrors the per-run summary counters.
type Counts struct {
	Processed int
	Updated   int
	Verified  int
	Synced    int
	Unknown   int
	Skipped   int
	Errored   int
}

// Run is one verification run. MaxProcessed is -1 when unbounded.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string
	Force         bool
	MaxProcessed  int
	Counts        Counts
	CutoffReached bool
	Error         string
}

// Resolution is the outcome recorded for a single record within a run.
type Resolution struct {
	RunID              string
	RecordKey          string
	Name               string
	Outcome            string
	Identifier         string
	PreviousIdentifier string
	Source             string
	MethodsTried       []string
	RecordedAt         time.Time
}

const runColumns = `id, started_at, finished_at, status, force_recheck, max_processed,
    processed, updated, verified, synced, unknown, skipped, errored, cutoff_reached, error_message`

// BeginRun inserts a run row in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO runs (id, started_at, status, force_recheck, max_processed) VALUES (?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), StatusRunning, boolToInt(run.Force), run.MaxProcessed,
	)
}

// FinishRun stores the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	status := run.Status
	if status == "" {
		status = StatusCompleted
	}
	c := run.Counts
	return s.exec(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, processed = ?, updated = ?, verified = ?,
            synced = ?, unknown = ?, skipped = ?, errored = ?, cutoff_reached = ?, error_message = ?
         WHERE id = ?`,
		formatTime(run.FinishedAt), status, c.Processed, c.Updated, c.Verified,
		c.Synced, c.Unknown, c.Skipped, c.Errored, boolToInt(run.CutoffReached), nullString(run.Error),
		run.ID,
	)
}

// RecordResolution appends a per-record outcome to a run.
func (s *Store) RecordResolution(ctx context.Context, res Resolution) error {
	if res.RecordedAt.IsZero() {
		res.RecordedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO resolutions (run_id, record_key, record_name, outcome, identifier,
            previous_identifier, source, methods_tried, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.RecordKey, nullString(res.Name), res.Outcome, nullString(res.Identifier),
		nullString(res.PreviousIdentifier), nullString(res.Source), strings.Join(res.MethodsTried, ","),
		formatTime(res.RecordedAt),
	)
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id. A missing run returns nil without error.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RunResolutions returns the outcomes recorded for a run in insertion order.
func (s *Store) RunResolutions(ctx context.Context, runID string) ([]Resolution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, record_key, record_name, outcome, identifier, previous_identifier,
            source, methods_tried, recorded_at
         FROM resolutions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var out []Resolution
	for rows.Next() {
		var (
			res                                Resolution
			name, ident, prev, source, methods sql.NullString
			recordedAt                         string
		)
		if err := rows.Scan(&res.RunID, &res.RecordKey, &name, &res.Outcome, &ident, &prev,
			&source, &methods, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		res.Name = name.String
		res.Identifier = ident.String
		res.PreviousIdentifier = prev.String
		res.Source = source.String
		if methods.String != "" {
			res.MethodsTried = strings.Split(methods.String, ",")
		}
		res.RecordedAt = parseTime(recordedAt)
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                 Run
		startedAt           string
		finishedAt, errText sql.NullString
		force, cutoff       int
	)
	err := row.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &force, &run.MaxProcessed,
		&run.Counts.Processed, &run.Counts.Updated, &run.Counts.Verified, &run.Counts.Synced,
		&run.Counts.Unknown, &run.Counts.Skipped, &run.Counts.Errored, &cutoff, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	run.Force = force != 0
	run.CutoffReached = cutoff != 0
	run.Error = errText.String
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
