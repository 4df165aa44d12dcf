package park

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/monitoring"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/scan"
	"github.com/banshee-data/autopark/internal/timeutil"
	"github.com/banshee-data/autopark/internal/units"
)

// ExecutionReport records how far a maneuver got.
type ExecutionReport struct {
	// LastPhase is the last phase entered; PhaseDone on success.
	LastPhase Phase
	Ahead     corner.Corner
	AheadX    float64
	Corrected bool
}

// Executor drives a Plan through its phases. It never retries: the first
// failure is returned and the caller stops the robot.
type Executor struct {
	drv    driver.Driver
	motion MotionController
	det    *corner.Detector
	clock  timeutil.Clock
	opts   Options
	rec    Recorder
}

// NewExecutor returns an Executor. motion defaults to TimedMotion and rec may
// be nil.
func NewExecutor(drv driver.Driver, motion MotionController, clock timeutil.Clock, opts Options, rec Recorder) *Executor {
	if motion == nil {
		motion = TimedMotion{Driver: drv, Clock: clock}
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Executor{
		drv:    drv,
		motion: motion,
		det:    corner.NewDetector(opts.DepthBound),
		clock:  clock,
		opts:   opts,
		rec:    rec,
	}
}

// Execute runs plan from PhaseApproach to PhaseDone.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) (ExecutionReport, error) {
	rep := ExecutionReport{LastPhase: PhaseApproach}
	steps := []struct {
		phase Phase
		run   func(context.Context, *planner.Plan, *ExecutionReport) error
	}{
		{PhaseApproach, e.approach},
		{PhaseTurn1, e.turn1},
		{PhaseTurn2, e.turn2},
		{PhaseStop, e.stop},
		{PhaseRecheck, e.recheck},
		{PhaseForwardCorrect, e.forwardCorrect},
	}
	for _, step := range steps {
		rep.LastPhase = step.phase
		monitoring.Debugf("phase %s", step.phase)
		if err := step.run(ctx, plan, &rep); err != nil {
			return rep, fmt.Errorf("%s: %w", step.phase, err)
		}
	}
	rep.LastPhase = PhaseDone
	return rep, nil
}

func (e *Executor) approach(ctx context.Context, plan *planner.Plan, _ *ExecutionReport) error {
	logRecordErr(e.rec.RecordMove(ctx, MoveRecord{Phase: PhaseApproach, Distance: plan.ForwardOffset}))
	return moveRelative(ctx, e.drv, e.clock, e.opts, plan.ForwardOffset)
}

func (e *Executor) turn1(ctx context.Context, plan *planner.Plan, _ *ExecutionReport) error {
	logRecordErr(e.rec.RecordMove(ctx, MoveRecord{Phase: PhaseTurn1, Velocities: plan.FirstTurn, Duration: plan.TurnDuration}))
	return e.motion.Arc(ctx, plan.FirstTurn, plan.TurnDuration)
}

func (e *Executor) turn2(ctx context.Context, plan *planner.Plan, _ *ExecutionReport) error {
	logRecordErr(e.rec.RecordMove(ctx, MoveRecord{Phase: PhaseTurn2, Velocities: plan.SecondTurn, Duration: plan.TurnDuration}))
	return e.motion.Arc(ctx, plan.SecondTurn, plan.TurnDuration)
}

func (e *Executor) stop(ctx context.Context, _ *planner.Plan, _ *ExecutionReport) error {
	if err := e.drv.CommandVelocities(0, 0); err != nil {
		return err
	}
	return timeutil.SleepContext(ctx, e.clock, e.opts.SettleTime)
}

func (e *Executor) recheck(ctx context.Context, _ *planner.Plan, rep *ExecutionReport) error {
	raw, err := e.drv.AcquireScan(ctx)
	if err != nil {
		return fmt.Errorf("acquire scan: %w", err)
	}
	buf := scan.Normalize(raw, e.opts.Window)
	rep.Ahead = e.det.DetectAhead(buf)
	logRecordErr(e.rec.RecordScan(ctx, ScanRecord{Phase: PhaseRecheck, Buffer: buf, Ahead: rep.Ahead}))
	return nil
}

// forwardCorrect creeps forward by one robot radius when the car ahead is
// further than RobotRadius+AheadMargin in front of the robot.
func (e *Executor) forwardCorrect(ctx context.Context, _ *planner.Plan, rep *ExecutionReport) error {
	if !rep.Ahead.Found {
		monitoring.Logf("no corner ahead after maneuver, skipping forward correction")
		return nil
	}
	rep.AheadX = -math.Cos(units.Radians(rep.Ahead.Angle)) * rep.Ahead.Distance
	threshold := e.opts.RobotRadius + e.opts.AheadMargin
	correction := CorrectionRecord{Ahead: rep.Ahead, AheadX: rep.AheadX, Threshold: threshold}
	if rep.AheadX <= threshold {
		logRecordErr(e.rec.RecordCorrection(ctx, correction))
		return nil
	}

	correction.Distance = e.opts.RobotRadius
	correction.Applied = true
	logRecordErr(e.rec.RecordCorrection(ctx, correction))
	logRecordErr(e.rec.RecordMove(ctx, MoveRecord{Phase: PhaseForwardCorrect, Distance: e.opts.RobotRadius}))
	if err := moveRelative(ctx, e.drv, e.clock, e.opts, e.opts.RobotRadius); err != nil {
		return err
	}
	rep.Corrected = true
	return nil
}
