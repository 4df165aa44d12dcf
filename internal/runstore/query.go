package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
	Scans    int       `json:"scans"`
	Moves    int       `json:"moves"`
	Depth    *float64  `json:"depth_mm,omitempty"`
	Width    *float64  `json:"width_mm,omitempty"`

	Initialized bool   `json:"initialized"`
	InitError   string `json:"init_error,omitempty"`
}

// ScanRow is a stored sweep without its samples.
type ScanRow struct {
	Phase       string   `json:"phase"`
	Position    int      `json:"position"`
	Attempt     int      `json:"attempt"`
	SampleCount int      `json:"sample_count"`
	FirstAngle  *float64 `json:"first_angle,omitempty"`
	SecondAngle *float64 `json:"second_angle,omitempty"`
	ThirdAngle  *float64 `json:"third_angle,omitempty"`
	AheadAngle  *float64 `json:"ahead_angle,omitempty"`
	Accepted    bool     `json:"accepted"`
	Noise       float64  `json:"noise_mm"`
}

// MoveRow is a stored motion command.
type MoveRow struct {
	Phase    string        `json:"phase"`
	Distance float64       `json:"distance_mm"`
	Left     float64       `json:"left"`
	Right    float64       `json:"right"`
	Duration time.Duration `json:"duration"`
}

const runColumns = `run_id, started_unix_ms, finished_unix_ms, initialized, init_error,
	outcome, reason, error, scans, moves, depth_mm, width_mm`

// ErrRunNotFound is returned by Run for an unknown id.
var ErrRunNotFound = errors.New("runstore: run not found")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		r                           RunSummary
		started                     int64
		finished, scans, moves      sql.NullInt64
		initialized                 sql.NullBool
		initErr, outcome, reason, e sql.NullString
		depth, width                sql.NullFloat64
	)
	if err := row.Scan(&r.RunID, &started, &finished, &initialized, &initErr,
		&outcome, &reason, &e, &scans, &moves, &depth, &width); err != nil {
		return r, err
	}
	r.Started = time.UnixMilli(started)
	if finished.Valid {
		r.Finished = time.UnixMilli(finished.Int64)
	}
	r.Initialized = initialized.Bool
	r.InitError = initErr.String
	r.Outcome = outcome.String
	r.Reason = reason.String
	r.Error = e.String
	r.Scans = int(scans.Int64)
	r.Moves = int(moves.Int64)
	r.Depth = floatPtr(depth)
	r.Width = floatPtr(width)
	return r, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_unix_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns one run by id.
func (s *Store) Run(ctx context.Context, runID string) (RunSummary, error) {
	r, err := scanRun(s.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// Scans returns the sweeps of a run in recording order.
func (s *Store) Scans(ctx context.Context, runID string) ([]ScanRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT phase, position, attempt, sample_count, first_angle, second_angle,
			third_angle, ahead_angle, accepted, noise_mm
		FROM scans WHERE run_id = ? ORDER BY scan_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRow
	for rows.Next() {
		var (
			r                           ScanRow
			first, second, third, ahead sql.NullFloat64
			noise                       sql.NullFloat64
		)
		if err := rows.Scan(&r.Phase, &r.Position, &r.Attempt, &r.SampleCount,
			&first, &second, &third, &ahead, &r.Accepted, &noise); err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		r.FirstAngle = floatPtr(first)
		r.SecondAngle = floatPtr(second)
		r.ThirdAngle = floatPtr(third)
		r.AheadAngle = floatPtr(ahead)
		r.Noise = noise.Float64
		out = append(out, r)
	}
	return out, rows.Err()
}

// Moves returns the motion commands of a run in recording order.
func (s *Store) Moves(ctx context.Context, runID string) ([]MoveRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT phase, distance_mm, left_mm_s, right_mm_s, duration_ms
		FROM moves WHERE run_id = ? ORDER BY move_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	var out []MoveRow
	for rows.Next() {
		var (
			r          MoveRow
			durationMs int64
		)
		if err := rows.Scan(&r.Phase, &r.Distance, &r.Left, &r.Right, &durationMs); err != nil {
			return nil, fmt.Errorf("scan move row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
