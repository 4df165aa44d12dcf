package sim

import (
	"math"

	"github.com/golang/geo/r2"
)

// Segment is an obstacle edge in the street frame (mm).
type Segment struct {
	A r2.Point
	B r2.Point
}

// Street is the static world the simulated range-finder sees. The street
// frame is the robot's frame at start: x forward, y to the left.
type Street struct {
	Segments []Segment
	// MaxRange is reported for rays that hit nothing.
	MaxRange float64
}

// StreetParams lay out a row of two parked cars in front of a wall on the
// robot's right.
type StreetParams struct {
	// Clearance is the lateral distance from the robot to the cars.
	Clearance float64
	// CurbOffset is the lateral distance from the robot to the wall.
	CurbOffset float64
	// CarBehindFront is the x of the front face of the car behind the space.
	CarBehindFront float64
	// GapWidth is the free length between the two cars.
	GapWidth  float64
	CarLength float64
	MaxRange  float64
}

// DefaultStreetParams is a 700 mm gap starting 100 mm ahead of the robot,
// with the cars 200 mm to its right.
func DefaultStreetParams() StreetParams {
	return StreetParams{
		Clearance:      200,
		CurbOffset:     800,
		CarBehindFront: 100,
		GapWidth:       700,
		CarLength:      1000,
		MaxRange:       4000,
	}
}

// NewStreet builds the wall and the two cars described by p.
func NewStreet(p StreetParams) Street {
	near, far := -p.Clearance, -p.CurbOffset
	behind := box(p.CarBehindFront-p.CarLength, p.CarBehindFront, far, near)
	aheadRear := p.CarBehindFront + p.GapWidth
	ahead := box(aheadRear, aheadRear+p.CarLength, far, near)

	wallFrom := p.CarBehindFront - 4*p.CarLength
	wallTo := aheadRear + 4*p.CarLength
	segs := []Segment{{A: r2.Point{X: wallFrom, Y: far}, B: r2.Point{X: wallTo, Y: far}}}
	segs = append(segs, behind...)
	segs = append(segs, ahead...)
	return Street{Segments: segs, MaxRange: p.MaxRange}
}

// WallOnly is a street with nothing but a wall offset mm to the right.
func WallOnly(offset, maxRange float64) Street {
	return Street{
		Segments: []Segment{{A: r2.Point{X: -20000, Y: -offset}, B: r2.Point{X: 20000, Y: -offset}}},
		MaxRange: maxRange,
	}
}

func box(x0, x1, y0, y1 float64) []Segment {
	a := r2.Point{X: x0, Y: y0}
	b := r2.Point{X: x1, Y: y0}
	c := r2.Point{X: x1, Y: y1}
	d := r2.Point{X: x0, Y: y1}
	return []Segment{{a, b}, {b, c}, {c, d}, {d, a}}
}

// Cast returns the distance from origin along dir (unit length) to the
// nearest segment, or MaxRange when nothing lies within it.
func (s Street) Cast(origin, dir r2.Point) float64 {
	best := math.Inf(1)
	for _, seg := range s.Segments {
		if t, ok := intersect(origin, dir, seg); ok && t < best {
			best = t
		}
	}
	if best > s.MaxRange {
		return s.MaxRange
	}
	return best
}

// intersect solves origin + t·dir = A + u·(B-A) for t > 0, u in [0, 1].
func intersect(origin, dir r2.Point, seg Segment) (float64, bool) {
	edge := seg.B.Sub(seg.A)
	denom := dir.Cross(edge)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	w := seg.A.Sub(origin)
	t := w.Cross(edge) / denom
	u := w.Cross(dir) / denom
	if t <= 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
