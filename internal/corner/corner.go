// Package corner finds the parking-space landmarks in a side sweep.
//
// The detector walks the sweep once, looking at each sample together with the
// two that follow it. A landmark only counts when it holds against both
// lookahead samples, so a spike on a single reading is ignored. The heuristic
// assumes:
//
//   - the sweep is ordered from the robot's right (90°) towards straight
//     ahead (180°), as scan.Normalize produces;
//   - DepthBound is larger than the sensor noise amplitude, otherwise noise
//     on the near car triggers the first corner;
//   - the wall and the face of the car ahead are visible past the near car.
//
// It can still miss real corners on noisy sweeps; the search loop rescans
// instead of the detector trying harder.
package corner

import (
	"fmt"

	"github.com/banshee-data/autopark/internal/scan"
)

// Corner is a landmark reading. Found is false until the detector assigns it.
type Corner struct {
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
	Found    bool    `json:"found"`
}

func at(s scan.Sample) Corner {
	return Corner{Angle: s.Angle, Distance: s.Distance, Found: true}
}

func (c Corner) String() string {
	if !c.Found {
		return "not found"
	}
	return fmt.Sprintf("Distance: %f\tAngle: %f", c.Distance, c.Angle)
}

// Set holds the three landmarks of one detection attempt.
type Set struct {
	// First is the near edge of the car behind the space.
	First Corner `json:"first"`
	// Second is the deepest point of the gap, where the wall meets the car ahead.
	Second Corner `json:"second"`
	// Third is the near edge of the car ahead.
	Third Corner `json:"third"`
}

// Complete reports whether all three corners were found.
func (s Set) Complete() bool {
	return s.First.Found && s.Second.Found && s.Third.Found
}

// Detector finds corners using a fixed depth threshold.
type Detector struct {
	// DepthBound is the minimum jump in distance (mm) between a sample and
	// both of the next two samples that marks the first corner.
	DepthBound float64
}

// NewDetector returns a Detector using depthBound millimetres.
func NewDetector(depthBound float64) *Detector {
	return &Detector{DepthBound: depthBound}
}

// Detect returns the corners found in buf. Corners that were not found are
// left unset. Each corner is assigned at most once and the pass stops as soon
// as the third corner is found.
func (d *Detector) Detect(buf scan.Buffer) Set {
	var set Set
	s := buf.Samples
	for i := 0; i+2 < len(s); i++ {
		cur, next, nextnext := s[i].Distance, s[i+1].Distance, s[i+2].Distance

		if !set.First.Found && cur+d.DepthBound < next && cur+d.DepthBound < nextnext {
			set.First = at(s[i])
		}

		if set.First.Found && !set.Second.Found && cur > next && cur > nextnext {
			set.Second = at(s[i])
		}

		if set.First.Found && set.Second.Found && cur < next && cur < nextnext {
			set.Third = at(s[i])
			break
		}
	}
	return set
}

// DetectAhead returns the first local maximum of buf. After the robot has
// backed into the space this is where the wall meets the car ahead.
func (d *Detector) DetectAhead(buf scan.Buffer) Corner {
	s := buf.Samples
	for i := 0; i+2 < len(s); i++ {
		if s[i].Distance > s[i+1].Distance && s[i].Distance > s[i+2].Distance {
			return at(s[i])
		}
	}
	return Corner{}
}

// Trustworthy reports whether buf's noise leaves DepthBound meaningful, and
// returns the measured noise amplitude.
func (d *Detector) Trustworthy(buf scan.Buffer) (bool, float64) {
	noise := scan.NoiseAmplitude(buf)
	return d.DepthBound > noise, noise
}
