// Package space derives the size of a candidate parking space from its three
// corner landmarks.
package space

import (
	"errors"
	"math"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/units"
)

// ErrIncompleteCorners is returned when a corner needed for the geometry was
// not found.
var ErrIncompleteCorners = errors.New("space: corners incomplete")

// Dimensions of a candidate space in millimetres. Depth runs from the wall
// out to the near edge of the car ahead; Width is the opening between the
// two cars.
type Dimensions struct {
	Depth float64 `json:"depth"`
	Width float64 `json:"width"`
}

// Fits reports whether the space is wider than minWidth.
func (d Dimensions) Fits(minWidth float64) bool {
	return d.Width > minWidth
}

// LawOfCosines returns the side opposite angleDeg in a triangle whose other
// two sides are a and b.
func LawOfCosines(a, b, angleDeg float64) float64 {
	sq := a*a + b*b - 2*a*b*math.Cos(units.Radians(angleDeg))
	if sq < 0 {
		// rounding when a == b and the angle is ~0
		return 0
	}
	return math.Sqrt(sq)
}

// Compute returns the depth between second and third and the width between
// first and third, using the sensor as the shared triangle vertex.
func Compute(second, third, first corner.Corner) (Dimensions, error) {
	if !first.Found || !second.Found || !third.Found {
		return Dimensions{}, ErrIncompleteCorners
	}
	return Dimensions{
		Depth: LawOfCosines(second.Distance, third.Distance, third.Angle-second.Angle),
		Width: LawOfCosines(first.Distance, third.Distance, third.Angle-first.Angle),
	}, nil
}

// ComputeSet is Compute over a detection result.
func ComputeSet(s corner.Set) (Dimensions, error) {
	return Compute(s.Second, s.Third, s.First)
}
