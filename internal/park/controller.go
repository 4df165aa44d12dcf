// Package park runs the auto-park sequence: search for a space, measure it,
// plan the two-arc maneuver and execute it, stopping the robot on failure.
package park

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/monitoring"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/space"
	"github.com/banshee-data/autopark/internal/timeutil"
)

// ReasonNoSpot is reported when the search or the width check finds nothing.
const ReasonNoSpot = "Adequate spot not found"

// Report summarizes one run.
type Report struct {
	Outcome    Outcome
	Reason     string
	Search     SearchResult
	Dimensions *space.Dimensions
	Plan       *planner.Plan
	Execution  *ExecutionReport
	Started    time.Time
	Finished   time.Time
	Err        error
}

// Config wires a Controller. Only Driver is required.
type Config struct {
	Driver   driver.Driver
	Options  Options
	Clock    timeutil.Clock
	Motion   MotionController
	Recorder Recorder
}

// Controller owns a single parking run at a time.
type Controller struct {
	drv     driver.Driver
	opts    Options
	clock   timeutil.Clock
	motion  MotionController
	rec     Recorder
	planner *planner.Planner
}

// NewController applies defaults to cfg and returns a Controller.
func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Motion == nil {
		cfg.Motion = TimedMotion{Driver: cfg.Driver, Clock: cfg.Clock}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	return &Controller{
		drv:     cfg.Driver,
		opts:    cfg.Options,
		clock:   cfg.Clock,
		motion:  cfg.Motion,
		rec:     cfg.Recorder,
		planner: planner.New(cfg.Options.Planner),
	}
}

// Run connects, searches, measures, plans and executes. A run that finds no
// usable space returns OutcomeNoSpot and a nil error without moving the
// robot beyond the search. Sensor and execution failures stop the wheels and
// return the failure combined with any error from stopping.
func (c *Controller) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{Started: c.clock.Now()}
	logRecordErr(c.rec.StartRun(ctx, RunInfo{Started: report.Started, Options: c.opts}))
	defer func() {
		report.Finished = c.clock.Now()
		report.Err = err
		if err != nil {
			report.Outcome = OutcomeFailed
			monitoring.Logf("run failed: %v", err)
		}
		logRecordErr(c.rec.FinishRun(context.WithoutCancel(ctx), report))
	}()

	connErr := c.drv.Connect(ctx)
	logRecordErr(c.rec.RecordInitialization(ctx, connErr))
	if connErr != nil {
		return report, fmt.Errorf("connect: %w", connErr)
	}

	search := NewSearch(c.drv, c.clock, c.opts, c.rec)
	report.Search, err = search.Run(ctx)
	if err != nil {
		return report, c.safeStop(err)
	}
	if report.Search.State != SearchFound {
		return c.noSpot(report, ReasonNoSpot), nil
	}

	dims, err := space.ComputeSet(report.Search.Corners)
	if err != nil {
		return report, err
	}
	report.Dimensions = &dims
	logRecordErr(c.rec.RecordDimensions(ctx, dims))
	monitoring.Logf("space depth %.1f mm, width %.1f mm", dims.Depth, dims.Width)
	if !dims.Fits(c.opts.WidthBound) {
		return c.noSpot(report, ReasonNoSpot), nil
	}

	plan, err := c.planner.Plan(report.Search.Corners.First, report.Search.Corners.Second)
	if err != nil {
		if errors.Is(err, planner.ErrInfeasibleGeometry) || errors.Is(err, planner.ErrDegenerateCorners) {
			return c.noSpot(report, err.Error()), nil
		}
		return report, err
	}
	report.Plan = plan
	logRecordErr(c.rec.RecordPlan(ctx, plan))

	exec := NewExecutor(c.drv, c.motion, c.clock, c.opts, c.rec)
	execReport, err := exec.Execute(ctx, plan)
	report.Execution = &execReport
	if err != nil {
		return report, c.safeStop(err)
	}
	report.Outcome = OutcomeParked
	monitoring.Logf("parked")
	return report, nil
}

func (c *Controller) noSpot(report *Report, reason string) *Report {
	report.Outcome = OutcomeNoSpot
	report.Reason = reason
	monitoring.Logf("%s", reason)
	return report
}

// safeStop zeroes the wheel speeds and folds any failure into err.
func (c *Controller) safeStop(err error) error {
	if stopErr := c.drv.CommandVelocities(0, 0); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("safe stop: %w", stopErr))
	}
	return err
}
