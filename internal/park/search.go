package park

import (
	"context"
	"fmt"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/monitoring"
	"github.com/banshee-data/autopark/internal/scan"
	"github.com/banshee-data/autopark/internal/timeutil"
)

// SearchState is the terminal state of a search.
type SearchState int

const (
	SearchExhausted SearchState = iota
	SearchFound
)

func (s SearchState) String() string {
	if s == SearchFound {
		return "found"
	}
	return "exhausted"
}

// SearchResult reports how a search ended. Corners is only meaningful when
// State is SearchFound.
type SearchResult struct {
	State   SearchState
	Corners corner.Set
	// Scans is the number of sweeps taken and Moves the number of
	// repositioning moves.
	Scans int
	Moves int
}

// Search scans for a space, moving forward between positions.
type Search struct {
	drv      driver.Driver
	det      *corner.Detector
	clock    timeutil.Clock
	opts     Options
	rec      Recorder
	warnOnce bool
}

// NewSearch returns a Search over drv. rec may be nil.
func NewSearch(drv driver.Driver, clock timeutil.Clock, opts Options, rec Recorder) *Search {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Search{
		drv:   drv,
		det:   corner.NewDetector(opts.DepthBound),
		clock: clock,
		opts:  opts,
		rec:   rec,
	}
}

// accept reports whether a detection is good enough to plan from. The angle
// bound rejects a first corner so far ahead that the near car hides the gap.
func (s *Search) accept(set corner.Set) bool {
	return set.Third.Found && set.First.Angle < s.opts.FirstCornerAngleBound
}

// Run scans up to MaxScans times at each of up to MaxMoves positions. The
// robot moves MoveDistance forward only after a position produced no
// acceptable detection, and never after the last position.
func (s *Search) Run(ctx context.Context) (SearchResult, error) {
	var res SearchResult
	for pos := 0; pos < s.opts.MaxMoves; pos++ {
		for attempt := 0; attempt < s.opts.MaxScans; attempt++ {
			set, err := s.scanOnce(ctx, pos, attempt)
			res.Scans++
			if err != nil {
				return res, err
			}
			if s.accept(set) {
				res.State = SearchFound
				res.Corners = set
				return res, nil
			}
		}

		if pos == s.opts.MaxMoves-1 {
			break
		}
		if err := s.reposition(ctx); err != nil {
			return res, err
		}
		res.Moves++
	}
	res.State = SearchExhausted
	return res, nil
}

func (s *Search) scanOnce(ctx context.Context, pos, attempt int) (corner.Set, error) {
	if err := timeutil.SleepContext(ctx, s.clock, s.opts.ScanDelay); err != nil {
		return corner.Set{}, err
	}
	raw, err := s.drv.AcquireScan(ctx)
	if err != nil {
		return corner.Set{}, fmt.Errorf("acquire scan: %w", err)
	}
	buf := scan.Normalize(raw, s.opts.Window)
	set := s.det.Detect(buf)

	ok, noise := s.det.Trustworthy(buf)
	if !ok && !s.warnOnce {
		s.warnOnce = true
		monitoring.Logf("warning: depth bound %.1f mm does not exceed scan noise %.1f mm", s.opts.DepthBound, noise)
	}
	monitoring.Debugf("position %d scan %d: %d samples, first %v, second %v, third %v",
		pos, attempt, buf.Len(), set.First, set.Second, set.Third)

	logRecordErr(s.rec.RecordScan(ctx, ScanRecord{
		Phase:    PhaseSearch,
		Position: pos,
		Attempt:  attempt,
		Buffer:   buf,
		Corners:  set,
		Accepted: s.accept(set),
		Noise:    noise,
	}))
	return set, nil
}

func (s *Search) reposition(ctx context.Context) error {
	logRecordErr(s.rec.RecordMove(ctx, MoveRecord{Phase: PhaseSearch, Distance: s.opts.MoveDistance}))
	if err := moveRelative(ctx, s.drv, s.clock, s.opts, s.opts.MoveDistance); err != nil {
		return fmt.Errorf("reposition: %w", err)
	}
	if err := s.drv.ResetPoseOrigin(); err != nil {
		return fmt.Errorf("reset pose: %w", err)
	}
	return nil
}

func logRecordErr(err error) {
	if err != nil {
		monitoring.Logf("record: %v", err)
	}
}
