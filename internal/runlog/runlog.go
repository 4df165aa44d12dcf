// Package runlog writes a plain-text log of one parking run: the raw laser
// readings, the corners found, the space dimensions, the manoeuvre
// calculations and the outcome. It is meant to be read by a person after
// the run, so every section is flushed to the file as it happens.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/fsutil"
	"github.com/banshee-data/autopark/internal/park"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/space"
)

// DefaultPath is where the CLI writes the log when no path is given.
const DefaultPath = "logfile.txt"

var errNotStarted = errors.New("runlog: run not started")

const banner = "######################################################\n"

// Log is a park.Recorder writing one text file per run. Each StartRun
// truncates the file.
type Log struct {
	park.NopRecorder

	fsys fsutil.FileSystem
	path string

	mu    sync.Mutex
	w     io.WriteCloser
	scans int
}

var _ park.Recorder = (*Log)(nil)

// New returns a Log writing to path on fsys.
func New(fsys fsutil.FileSystem, path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{fsys: fsys, path: path}
}

// Path is the file the log is written to.
func (l *Log) Path() string { return l.path }

func (l *Log) write(format string, v ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return errNotStarted
	}
	_, err := fmt.Fprintf(l.w, format, v...)
	return err
}

func (l *Log) StartRun(_ context.Context, info park.RunInfo) error {
	w, err := l.fsys.Create(l.path)
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	l.mu.Lock()
	if l.w != nil {
		l.w.Close()
	}
	l.w = w
	l.scans = 0
	l.mu.Unlock()

	return l.write(banner+
		"## AUTO-PARK LOGFILE ##\n"+
		"## - This file contains data for a run of Auto-Park ##\n"+
		"## - Started %s ##\n"+
		banner+"\n", info.Started.UTC().Format("2006-01-02 15:04:05 MST"))
}

func (l *Log) RecordInitialization(_ context.Context, initErr error) error {
	if initErr != nil {
		return l.write("## INITIALIZATION ##\nInitialization failed: %v\n\n", initErr)
	}
	return l.write("## INITIALIZATION ##\nRobot: Initialized\nLaser: Initialized\n\n")
}

func (l *Log) RecordScan(_ context.Context, rec park.ScanRecord) error {
	var b strings.Builder
	l.mu.Lock()
	n := l.scans
	l.scans++
	l.mu.Unlock()

	fmt.Fprintf(&b, "## LASER READINGS %d ##\n", n)
	for i, s := range rec.Buffer.Samples {
		fmt.Fprintf(&b, "Reading %d:\tLaser Dist: %f\tAngle: %f\n", i, s.Distance, s.Angle)
	}
	b.WriteString("\n")

	if rec.Accepted {
		b.WriteString("## CORNERS ##\n")
		writeCorner(&b, "First Corner", rec.Corners.First)
		writeCorner(&b, "Second Corner", rec.Corners.Second)
		writeCorner(&b, "Third Corner", rec.Corners.Third)
		b.WriteString("\n")
	}
	return l.write("%s", b.String())
}

func writeCorner(b *strings.Builder, label string, c corner.Corner) {
	if !c.Found {
		fmt.Fprintf(b, "%s: not found\n", label)
		return
	}
	fmt.Fprintf(b, "%s: Distance: %f\tAngle: %f\n", label, c.Distance, c.Angle)
}

func (l *Log) RecordDimensions(_ context.Context, dims space.Dimensions) error {
	return l.write("## SPACE DIMENSIONS ##\nDepth: %f\nWidth: %f\n\n", dims.Depth, dims.Width)
}

func (l *Log) RecordPlan(_ context.Context, p *planner.Plan) error {
	if p == nil {
		return nil
	}
	var b strings.Builder
	b.WriteString("## CALCULATIONS ##\n")
	fmt.Fprintf(&b, "first_car_x: %f\n", p.CarX)
	fmt.Fprintf(&b, "wall_y: %f\n", p.WallY)
	fmt.Fprintf(&b, "circle1_x: %f\n", p.Circle1.X)
	fmt.Fprintf(&b, "circle1_y: %f\n", p.Circle1.Y)
	fmt.Fprintf(&b, "circle2_y: %f\n", p.Circle2.Y)
	fmt.Fprintf(&b, "xtangent: %f\n", p.Tangent.X)
	fmt.Fprintf(&b, "circle2_x: %f\n", p.Circle2.X)
	fmt.Fprintf(&b, "wheel_ratio: %f\n", p.WheelRatio)
	fmt.Fprintf(&b, "right_vel: %f\n", p.FirstTurn.Right)
	fmt.Fprintf(&b, "turn_angle: %f\n", p.TurnAngle)
	fmt.Fprintf(&b, "turn_time: %f\n", float64(p.TurnDuration)/float64(time.Millisecond))
	b.WriteString("\n## MOVE INFO ##\n")
	fmt.Fprintf(&b, "Forward move distance: %f mm\n", p.ForwardOffset)
	fmt.Fprintf(&b, "First turn velocity: (%f, %f)\n", p.FirstTurn.Left, p.FirstTurn.Right)
	fmt.Fprintf(&b, "Second turn velocity: (%f, %f)\n", p.SecondTurn.Left, p.SecondTurn.Right)
	return l.write("%s", b.String())
}

func (l *Log) RecordCorrection(_ context.Context, rec park.CorrectionRecord) error {
	var b strings.Builder
	b.WriteString("\n## FORWARD MOVE CORRECTION ##\n")
	fmt.Fprintf(&b, "Ahead Corner: Distance: %f\tAngle: %f\n", rec.Ahead.Distance, rec.Ahead.Angle)
	fmt.Fprintf(&b, "Ahead car x: %f\tThreshold: %f\n", rec.AheadX, rec.Threshold)
	if rec.Applied {
		fmt.Fprintf(&b, "Forward move correction: %f\n", rec.Distance)
	}
	return l.write("%s", b.String())
}

// FinishRun writes the outcome and closes the file.
func (l *Log) FinishRun(_ context.Context, report *park.Report) error {
	var b strings.Builder
	b.WriteString("\n## RESULT ##\n")
	if report != nil {
		fmt.Fprintf(&b, "Outcome: %s\n", report.Outcome)
		if report.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", report.Reason)
		}
		if report.Err != nil {
			fmt.Fprintf(&b, "Error: %v\n", report.Err)
		}
		fmt.Fprintf(&b, "Scans: %d\tMoves: %d\n", report.Search.Scans, report.Search.Moves)
		fmt.Fprintf(&b, "Duration: %s\n", report.Finished.Sub(report.Started))
	}
	err := l.write("%s", b.String())

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return err
	}
	cerr := l.w.Close()
	l.w = nil
	if err != nil {
		return err
	}
	return cerr
}
