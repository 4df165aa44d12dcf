package park

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/driver/sim"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/space"
	"github.com/banshee-data/autopark/internal/timeutil"
)

func simRobot(street sim.Street, clock *timeutil.MockClock) *sim.Robot {
	opts := sim.DefaultOptions()
	opts.Street = street
	opts.Clock = clock
	return sim.New(opts)
}

func streetWith(fn func(*sim.StreetParams)) sim.Street {
	p := sim.DefaultStreetParams()
	fn(&p)
	return sim.NewStreet(p)
}

func runController(t *testing.T, robot *sim.Robot, clock *timeutil.MockClock, opts Options, rec Recorder) (*Report, error) {
	t.Helper()
	c := NewController(Config{Driver: robot, Options: opts, Clock: clock, Recorder: rec})
	return c.Run(context.Background())
}

func TestController_ParksInSevenHundredGap(t *testing.T) {
	clock := testClock()
	robot := simRobot(sim.NewStreet(sim.DefaultStreetParams()), clock)

	report, err := runController(t, robot, clock, testOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, report.Outcome)

	assert.Equal(t, SearchFound, report.Search.State)
	assert.Equal(t, 1, report.Search.Scans)
	assert.Equal(t, 0, report.Search.Moves)
	require.NotNil(t, report.Dimensions)
	assert.InDelta(t, 700, report.Dimensions.Width, 2)
	require.NotNil(t, report.Plan)
	assert.InDelta(t, 1294, report.Plan.ForwardOffset, 1)
	require.NotNil(t, report.Execution)
	assert.Equal(t, PhaseDone, report.Execution.LastPhase)

	// The two arcs cancel in heading and end WallMargin clear of the wall.
	pose := robot.Pose()
	assert.InDelta(t, 0, pose.Heading, 1e-6)
	assert.InDelta(t, -542.5, pose.Position.Y, 1)

	motion := robot.MotionCommands()
	require.GreaterOrEqual(t, len(motion), 3)
	assert.Equal(t, sim.CommandMove, motion[0].Kind)
	assert.InDelta(t, report.Plan.ForwardOffset, motion[0].Distance, 1e-9)
	assert.Equal(t, report.Plan.FirstTurn.Left, motion[1].Left)
	assert.Equal(t, report.Plan.SecondTurn.Left, motion[2].Left)
}

func TestController_NarrowGapIsNoSpot(t *testing.T) {
	clock := testClock()
	robot := simRobot(streetWith(func(p *sim.StreetParams) { p.GapWidth = 400 }), clock)

	report, err := runController(t, robot, clock, testOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSpot, report.Outcome)
	assert.Equal(t, ReasonNoSpot, report.Reason)
	assert.Equal(t, SearchFound, report.Search.State)
	require.NotNil(t, report.Dimensions)
	assert.InDelta(t, 400, report.Dimensions.Width, 2)
	assert.Nil(t, report.Plan)
	assert.Empty(t, robot.MotionCommands())
}

func TestController_DeepGap(t *testing.T) {
	tests := []struct {
		name        string
		gap         float64
		wantOutcome Outcome
		wantMotion  int
	}{
		{"700 mm parks", 700, OutcomeParked, 3},
		{"400 mm is no spot", 400, OutcomeNoSpot, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := testClock()
			robot := simRobot(streetWith(func(p *sim.StreetParams) {
				p.CurbOffset = 3200
				p.GapWidth = tt.gap
			}), clock)

			report, err := runController(t, robot, clock, testOptions(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, report.Outcome)
			require.NotNil(t, report.Dimensions)
			assert.InDelta(t, tt.gap, report.Dimensions.Width, 2)
			if tt.wantOutcome == OutcomeNoSpot {
				assert.Equal(t, ReasonNoSpot, report.Reason)
			}
			assert.Len(t, robot.MotionCommands(), tt.wantMotion)
		})
	}
}

func TestController_RepositionsUntilFound(t *testing.T) {
	clock := testClock()
	// The near car extends 1000 mm ahead; each 300 mm move brings the gap
	// closer until the first corner falls below the angle bound.
	robot := simRobot(streetWith(func(p *sim.StreetParams) { p.CarBehindFront = 1000 }), clock)
	opts := testOptions()

	report, err := runController(t, robot, clock, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeParked, report.Outcome)
	assert.Equal(t, 3, report.Search.Moves)
	assert.Equal(t, 3*opts.MaxScans+1, report.Search.Scans)
	assert.Less(t, report.Search.Corners.First.Angle, opts.FirstCornerAngleBound)

	resets := 0
	for _, c := range robot.Commands() {
		if c.Kind == sim.CommandReset {
			resets++
		}
	}
	assert.Equal(t, 3, resets)
}

func TestController_ExhaustedSearch(t *testing.T) {
	clock := testClock()
	robot := simRobot(sim.WallOnly(800, 4000), clock)
	opts := testOptions()

	report, err := runController(t, robot, clock, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSpot, report.Outcome)
	assert.Equal(t, SearchExhausted, report.Search.State)
	assert.Equal(t, opts.MaxMoves*opts.MaxScans, report.Search.Scans)
	assert.Equal(t, opts.MaxMoves-1, report.Search.Moves)
	assert.Nil(t, report.Dimensions)

	// Only repositioning moves: no maneuver.
	motion := robot.MotionCommands()
	assert.Len(t, motion, opts.MaxMoves-1)
	for _, c := range motion {
		assert.Equal(t, sim.CommandMove, c.Kind)
		assert.Equal(t, opts.MoveDistance, c.Distance)
	}
}

func TestController_SensorUnavailable(t *testing.T) {
	clock := testClock()
	robot := simRobot(sim.NewStreet(sim.DefaultStreetParams()), clock)
	robot.SetSensorConnected(false)

	report, err := runController(t, robot, clock, testOptions(), nil)
	require.ErrorIs(t, err, driver.ErrSensorUnavailable)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.ErrorIs(t, report.Err, driver.ErrSensorUnavailable)

	cmds := robot.Commands()
	require.NotEmpty(t, cmds)
	last := cmds[len(cmds)-1]
	assert.Equal(t, sim.CommandVelocity, last.Kind)
	assert.Zero(t, last.Left)
	assert.Zero(t, last.Right)
}

func TestController_MotionTimeoutStopsRobot(t *testing.T) {
	clock := testClock()
	robot := simRobot(sim.NewStreet(sim.DefaultStreetParams()), clock)
	robot.SetStalled(true)

	report, err := runController(t, robot, clock, testOptions(), nil)
	require.ErrorIs(t, err, ErrMotionTimeout)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	require.NotNil(t, report.Execution)
	assert.Equal(t, PhaseApproach, report.Execution.LastPhase)

	cmds := robot.Commands()
	last := cmds[len(cmds)-1]
	assert.Equal(t, sim.CommandVelocity, last.Kind)
	assert.False(t, last.IsMotion())
}

func TestController_PlanningFailureIsNoSpot(t *testing.T) {
	clock := testClock()
	robot := simRobot(sim.NewStreet(sim.DefaultStreetParams()), clock)
	opts := testOptions()
	opts.Planner.TurningRadius = 100 // 2R below the wheel base

	report, err := runController(t, robot, clock, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSpot, report.Outcome)
	assert.Contains(t, report.Reason, planner.ErrDegenerateCorners.Error())
	assert.Empty(t, robot.MotionCommands())
}

func TestController_SafeStopErrorIsCombined(t *testing.T) {
	drv := newFakeDriver()
	drv.scanErr = driver.ErrSensorUnavailable
	drv.velocityErr = errors.New("base offline")
	c := NewController(Config{Driver: drv, Options: testOptions(), Clock: testClock()})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrSensorUnavailable)
	assert.Contains(t, err.Error(), "base offline")
}

// eventRecorder keeps the names of the Recorder calls it receives.
type eventRecorder struct {
	NopRecorder
	events []string
	report *Report
}

func (r *eventRecorder) StartRun(context.Context, RunInfo) error {
	r.events = append(r.events, "start")
	return nil
}

func (r *eventRecorder) RecordInitialization(context.Context, error) error {
	r.events = append(r.events, "init")
	return nil
}

func (r *eventRecorder) RecordScan(_ context.Context, rec ScanRecord) error {
	r.events = append(r.events, "scan:"+rec.Phase.String())
	return nil
}

func (r *eventRecorder) RecordDimensions(context.Context, space.Dimensions) error {
	r.events = append(r.events, "dimensions")
	return nil
}

func (r *eventRecorder) RecordPlan(context.Context, *planner.Plan) error {
	r.events = append(r.events, "plan")
	return nil
}

func (r *eventRecorder) RecordMove(_ context.Context, rec MoveRecord) error {
	r.events = append(r.events, "move:"+rec.Phase.String())
	return nil
}

func (r *eventRecorder) FinishRun(_ context.Context, report *Report) error {
	r.events = append(r.events, "finish")
	r.report = report
	return nil
}

func TestController_RecordsRun(t *testing.T) {
	clock := testClock()
	robot := simRobot(sim.NewStreet(sim.DefaultStreetParams()), clock)
	rec := &eventRecorder{}
	failing := &eventRecorder{}

	// A failing recorder never aborts the run.
	multi := MultiRecorder{rec, errRecorder{}, failing}
	report, err := runController(t, robot, clock, testOptions(), multi)
	require.NoError(t, err)
	assert.Equal(t, OutcomeParked, report.Outcome)

	want := []string{
		"start", "init", "scan:search", "dimensions", "plan",
		"move:approach", "move:turn1", "move:turn2", "scan:recheck",
	}
	require.GreaterOrEqual(t, len(rec.events), len(want)+1)
	assert.Equal(t, want, rec.events[:len(want)])
	assert.Equal(t, "finish", rec.events[len(rec.events)-1])
	assert.Same(t, report, rec.report)
	assert.Equal(t, rec.events, failing.events)
}

type errRecorder struct{ NopRecorder }

func (errRecorder) RecordScan(context.Context, ScanRecord) error {
	return errors.New("disk full")
}

func TestMultiRecorder_CombinesErrors(t *testing.T) {
	multi := MultiRecorder{errRecorder{}, NopRecorder{}, errRecorder{}, nil}
	err := multi.RecordScan(context.Background(), ScanRecord{})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.NoError(t, multi.StartRun(context.Background(), RunInfo{}))
}
