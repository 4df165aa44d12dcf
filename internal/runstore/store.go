// Package runstore keeps a SQLite history of parking runs: every sweep, the
// measured space, the manoeuvre plan, each motion command and the final
// outcome. A Store is a park.Recorder.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/park"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/space"
	"github.com/banshee-data/autopark/internal/timeutil"
)

// ErrNoRun is returned when a record arrives before StartRun.
var ErrNoRun = errors.New("runstore: no run in progress")

// Store records runs into a SQLite database.
type Store struct {
	*sql.DB
	clock timeutil.Clock

	mu    sync.Mutex
	runID string
}

var _ park.Recorder = (*Store)(nil)

// Open opens (or creates) the database at path and migrates it to the
// latest schema.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Store{DB: db, clock: clock}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RunID is the id of the run being recorded, or "" before StartRun.
func (s *Store) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *Store) current() (string, error) {
	id := s.RunID()
	if id == "" {
		return "", ErrNoRun
	}
	return id, nil
}

func (s *Store) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *Store) StartRun(ctx context.Context, info park.RunInfo) error {
	opts, err := json.Marshal(info.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	id := uuid.NewString()
	_, err = s.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_unix_ms, options_json) VALUES (?, ?, ?)`,
		id, info.Started.UnixMilli(), string(opts))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
	return nil
}

func (s *Store) RecordInitialization(ctx context.Context, initErr error) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	_, err = s.ExecContext(ctx,
		`UPDATE runs SET initialized = ?, init_error = ? WHERE run_id = ?`,
		initErr == nil, errString(initErr), id)
	return err
}

func (s *Store) RecordScan(ctx context.Context, rec park.ScanRecord) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	samples, err := json.Marshal(rec.Buffer.Samples)
	if err != nil {
		return fmt.Errorf("encode samples: %w", err)
	}
	fa, fd := cornerColumns(rec.Corners.First)
	sa, sd := cornerColumns(rec.Corners.Second)
	ta, td := cornerColumns(rec.Corners.Third)
	aa, ad := cornerColumns(rec.Ahead)
	_, err = s.ExecContext(ctx, `
		INSERT INTO scans (
			run_id, phase, position, attempt, sample_count, samples_json,
			first_angle, first_distance, second_angle, second_distance,
			third_angle, third_distance, ahead_angle, ahead_distance,
			accepted, noise_mm, recorded_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Phase.String(), rec.Position, rec.Attempt, rec.Buffer.Len(), string(samples),
		fa, fd, sa, sd, ta, td, aa, ad,
		rec.Accepted, rec.Noise, s.nowMs())
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (s *Store) RecordDimensions(ctx context.Context, dims space.Dimensions) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	_, err = s.ExecContext(ctx,
		`UPDATE runs SET depth_mm = ?, width_mm = ? WHERE run_id = ?`,
		dims.Depth, dims.Width, id)
	return err
}

func (s *Store) RecordPlan(ctx context.Context, plan *planner.Plan) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}
	_, err = s.ExecContext(ctx, `
		INSERT OR REPLACE INTO plans (
			run_id, car_x, wall_y, circle1_x, circle1_y, circle2_x, circle2_y,
			tangent_x, wheel_ratio, turn_angle, angular_velocity, turn_duration_ms,
			forward_offset, first_left, first_right, second_left, second_right
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, plan.CarX, plan.WallY, plan.Circle1.X, plan.Circle1.Y, plan.Circle2.X, plan.Circle2.Y,
		plan.Tangent.X, plan.WheelRatio, plan.TurnAngle, plan.AngularVelocity, plan.TurnDuration.Milliseconds(),
		plan.ForwardOffset, plan.FirstTurn.Left, plan.FirstTurn.Right, plan.SecondTurn.Left, plan.SecondTurn.Right)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *Store) RecordMove(ctx context.Context, rec park.MoveRecord) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	_, err = s.ExecContext(ctx, `
		INSERT INTO moves (run_id, phase, distance_mm, left_mm_s, right_mm_s, duration_ms, recorded_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Phase.String(), rec.Distance, rec.Velocities.Left, rec.Velocities.Right,
		rec.Duration.Milliseconds(), s.nowMs())
	if err != nil {
		return fmt.Errorf("insert move: %w", err)
	}
	return nil
}

func (s *Store) RecordCorrection(ctx context.Context, rec park.CorrectionRecord) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	aa, ad := cornerColumns(rec.Ahead)
	_, err = s.ExecContext(ctx, `
		INSERT OR REPLACE INTO corrections (run_id, ahead_angle, ahead_distance, ahead_x, threshold_mm, distance_mm, applied)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, aa, ad, nullIf(rec.AheadX, rec.Ahead.Found), rec.Threshold, rec.Distance, rec.Applied)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, report *park.Report) error {
	id, err := s.current()
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	_, err = s.ExecContext(ctx, `
		UPDATE runs SET finished_unix_ms = ?, outcome = ?, reason = ?, error = ?, scans = ?, moves = ?
		WHERE run_id = ?`,
		report.Finished.UnixMilli(), report.Outcome.String(), report.Reason, errString(report.Err),
		report.Search.Scans, report.Search.Moves, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func cornerColumns(c corner.Corner) (sql.NullFloat64, sql.NullFloat64) {
	return nullIf(c.Angle, c.Found), nullIf(c.Distance, c.Found)
}

func nullIf(v float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid}
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
