// Package scanplot renders laser sweeps as PNG scatter plots in the robot
// frame (x forward, y left) with the detected corners marked.
package scanplot

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/fsutil"
	"github.com/banshee-data/autopark/internal/park"
	"github.com/banshee-data/autopark/internal/scan"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	sampleColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	robotColor  = color.RGBA{A: 255}

	cornerColors = map[string]color.Color{
		"first":  color.RGBA{R: 220, A: 255},
		"second": color.RGBA{G: 160, A: 255},
		"third":  color.RGBA{B: 220, A: 255},
		"ahead":  color.RGBA{R: 240, G: 140, A: 255},
	}
)

type mark struct {
	name string
	c    corner.Corner
}

// cornerMarks lists the corners of rec that were found, in sweep order.
func cornerMarks(rec park.ScanRecord) []mark {
	all := []mark{
		{"first", rec.Corners.First},
		{"second", rec.Corners.Second},
		{"third", rec.Corners.Third},
		{"ahead", rec.Ahead},
	}
	var found []mark
	for _, m := range all {
		if m.c.Found {
			found = append(found, m)
		}
	}
	return found
}

// Render builds the plot for one scan record.
func Render(rec park.ScanRecord) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s scan (position %d, attempt %d)", rec.Phase, rec.Position, rec.Attempt)
	p.X.Label.Text = "x forward (mm)"
	p.Y.Label.Text = "y left (mm)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, rec.Buffer.Len())
	for _, s := range rec.Buffer.Samples {
		pt := s.Point()
		pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
	}
	if len(pts) > 0 {
		samples, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("sample scatter: %w", err)
		}
		samples.GlyphStyle.Color = sampleColor
		samples.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(samples)
	}

	robot, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return nil, err
	}
	robot.GlyphStyle.Color = robotColor
	robot.GlyphStyle.Shape = draw.BoxGlyph{}
	robot.GlyphStyle.Radius = vg.Points(4)
	p.Add(robot)
	p.Legend.Add("robot", robot)

	for _, m := range cornerMarks(rec) {
		pt := scan.Sample{Angle: m.c.Angle, Distance: m.c.Distance}.Point()
		s, err := plotter.NewScatter(plotter.XYs{{X: pt.X, Y: pt.Y}})
		if err != nil {
			return nil, fmt.Errorf("%s corner: %w", m.name, err)
		}
		s.GlyphStyle.Color = cornerColors[m.name]
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Radius = vg.Points(6)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("%s %.1fdeg %.0fmm", m.name, m.c.Angle, m.c.Distance), s)
	}
	p.Legend.Top = true
	return p, nil
}

// Plotter is a park.Recorder that saves every scan of a run as a PNG under
// Dir/<run start>/.
type Plotter struct {
	park.NopRecorder

	FS  fsutil.FileSystem
	Dir string

	mu     sync.Mutex
	runDir string
	seq    int
	files  []string
}

var _ park.Recorder = (*Plotter)(nil)

// New returns a Plotter writing under dir on fsys.
func New(fsys fsutil.FileSystem, dir string) *Plotter {
	return &Plotter{FS: fsys, Dir: dir}
}

func (p *Plotter) StartRun(_ context.Context, info park.RunInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runDir = filepath.Join(p.Dir, info.Started.UTC().Format("20060102T150405Z"))
	p.seq = 0
	p.files = nil
	return nil
}

func (p *Plotter) RecordScan(_ context.Context, rec park.ScanRecord) error {
	p.mu.Lock()
	if p.runDir == "" {
		p.mu.Unlock()
		return fmt.Errorf("scanplot: run not started")
	}
	name := filepath.Join(p.runDir, fmt.Sprintf("scan-%03d-%s.png", p.seq, rec.Phase))
	p.seq++
	p.mu.Unlock()

	pl, err := Render(rec)
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := fsutil.WriteTo(p.FS, name, wt); err != nil {
		return err
	}

	p.mu.Lock()
	p.files = append(p.files, name)
	p.mu.Unlock()
	return nil
}

// Files lists the plots written for the current run.
func (p *Plotter) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.files...)
}
