package park

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/scan"
	"github.com/banshee-data/autopark/internal/space"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	Started time.Time
	Options Options
}

// ScanRecord is one sweep and what the detector made of it.
type ScanRecord struct {
	Phase Phase
	// Position counts search positions from zero; Attempt counts scans at
	// that position from zero.
	Position int
	Attempt  int
	Buffer   scan.Buffer
	Corners  corner.Set
	Ahead    corner.Corner
	Accepted bool
	Noise    float64
}

// MoveRecord is one motion command issued by the run.
type MoveRecord struct {
	Phase      Phase
	Distance   float64
	Velocities planner.Velocities
	Duration   time.Duration
}

// CorrectionRecord is the outcome of the forward correction check.
type CorrectionRecord struct {
	Ahead     corner.Corner
	AheadX    float64
	Threshold float64
	Distance  float64
	Applied   bool
}

// Recorder receives everything a run observes. Recording errors are logged
// by the run and never abort it.
type Recorder interface {
	StartRun(ctx context.Context, info RunInfo) error
	RecordInitialization(ctx context.Context, err error) error
	RecordScan(ctx context.Context, rec ScanRecord) error
	RecordDimensions(ctx context.Context, dims space.Dimensions) error
	RecordPlan(ctx context.Context, plan *planner.Plan) error
	RecordMove(ctx context.Context, rec MoveRecord) error
	RecordCorrection(ctx context.Context, rec CorrectionRecord) error
	FinishRun(ctx context.Context, report *Report) error
}

// MultiRecorder fans every call out to each recorder in order.
type MultiRecorder []Recorder

var _ Recorder = MultiRecorder(nil)

func (m MultiRecorder) each(fn func(Recorder) error) error {
	var err error
	for _, r := range m {
		if r != nil {
			err = multierr.Append(err, fn(r))
		}
	}
	return err
}

func (m MultiRecorder) StartRun(ctx context.Context, info RunInfo) error {
	return m.each(func(r Recorder) error { return r.StartRun(ctx, info) })
}

func (m MultiRecorder) RecordInitialization(ctx context.Context, initErr error) error {
	return m.each(func(r Recorder) error { return r.RecordInitialization(ctx, initErr) })
}

func (m MultiRecorder) RecordScan(ctx context.Context, rec ScanRecord) error {
	return m.each(func(r Recorder) error { return r.RecordScan(ctx, rec) })
}

func (m MultiRecorder) RecordDimensions(ctx context.Context, dims space.Dimensions) error {
	return m.each(func(r Recorder) error { return r.RecordDimensions(ctx, dims) })
}

func (m MultiRecorder) RecordPlan(ctx context.Context, plan *planner.Plan) error {
	return m.each(func(r Recorder) error { return r.RecordPlan(ctx, plan) })
}

func (m MultiRecorder) RecordMove(ctx context.Context, rec MoveRecord) error {
	return m.each(func(r Recorder) error { return r.RecordMove(ctx, rec) })
}

func (m MultiRecorder) RecordCorrection(ctx context.Context, rec CorrectionRecord) error {
	return m.each(func(r Recorder) error { return r.RecordCorrection(ctx, rec) })
}

func (m MultiRecorder) FinishRun(ctx context.Context, report *Report) error {
	return m.each(func(r Recorder) error { return r.FinishRun(ctx, report) })
}

// NopRecorder discards everything. Embed it to implement part of Recorder.
type NopRecorder struct{}

func (NopRecorder) StartRun(context.Context, RunInfo) error { return nil }
func (NopRecorder) RecordInitialization(context.Context, error) error { return nil }
func (NopRecorder) RecordScan(context.Context, ScanRecord) error { return nil }
func (NopRecorder) RecordDimensions(context.Context, space.Dimensions) error { return nil }
func (NopRecorder) RecordPlan(context.Context, *planner.Plan) error { return nil }
func (NopRecorder) RecordMove(context.Context, MoveRecord) error { return nil }
func (NopRecorder) RecordCorrection(context.Context, CorrectionRecord) error { return nil }
func (NopRecorder) FinishRun(context.Context, *Report) error { return nil }
