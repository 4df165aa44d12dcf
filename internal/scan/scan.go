// Package scan holds one range-finder sweep as angle-ordered samples.
//
// Angles are degrees in the robot frame and distances are millimetres. A
// sample at angle α and distance d lies at (-d·cos α, -d·sin α) with x pointing
// forward and y to the left, so 90° is the robot's right and 180° is straight
// ahead. The side-scanning window runs from 90° to 180°.
package scan

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/autopark/internal/units"
)

// Sample is a single range reading.
type Sample struct {
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
}

// Point returns the sample position in the robot frame.
func (s Sample) Point() r2.Point {
	rad := units.Radians(s.Angle)
	return r2.Point{X: -s.Distance * math.Cos(rad), Y: -s.Distance * math.Sin(rad)}
}

// Window bounds the angles kept by Normalize.
type Window struct {
	Min float64
	Max float64
}

// DefaultWindow is the right-hand quarter sweep used for side scanning.
func DefaultWindow() Window {
	return Window{Min: 90, Max: 180}
}

// Contains reports whether angle lies inside the window, bounds included.
func (w Window) Contains(angle float64) bool {
	return angle >= w.Min && angle <= w.Max
}

// Buffer is a normalized sweep: strictly increasing angle, every distance
// positive. It is built fresh for every detection attempt.
type Buffer struct {
	Samples []Sample
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Distances returns the distance column.
func (b Buffer) Distances() []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Distance
	}
	return out
}

// Normalize builds a Buffer from raw device samples. Sweeps reported from
// 180° down to 90° are reversed, samples outside w are dropped, the sweep ends
// at the first zero-distance sample (the device terminator) and any sample
// that does not advance the angle is skipped.
func Normalize(raw []Sample, w Window) Buffer {
	ordered := make([]Sample, 0, len(raw))
	for _, s := range raw {
		if math.IsNaN(s.Angle) || math.IsNaN(s.Distance) || s.Distance < 0 {
			continue
		}
		if !w.Contains(s.Angle) {
			continue
		}
		ordered = append(ordered, s)
	}

	if len(ordered) > 1 && ordered[0].Angle > ordered[len(ordered)-1].Angle {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	out := ordered[:0]
	for _, s := range ordered {
		if s.Distance == 0 {
			break
		}
		if len(out) > 0 && s.Angle <= out[len(out)-1].Angle {
			continue
		}
		out = append(out, s)
	}
	return Buffer{Samples: out}
}

// NoiseAmplitude estimates the sensor noise of a sweep as the median absolute
// difference between neighbouring distances. Occluding edges are rare in a
// sweep, so the median tracks the noise floor rather than the jumps. Buffers
// with fewer than two samples report zero.
func NoiseAmplitude(b Buffer) float64 {
	if len(b.Samples) < 2 {
		return 0
	}
	diffs := make([]float64, 0, len(b.Samples)-1)
	for i := 1; i < len(b.Samples); i++ {
		diffs = append(diffs, math.Abs(b.Samples[i].Distance-b.Samples[i-1].Distance))
	}
	sort.Float64s(diffs)
	return stat.Quantile(0.5, stat.Empirical, diffs, nil)
}
