// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the synthetic sweeps used by the detection,
// search and end-to-end tests.
package testutil

import (
	"testing"

	"github.com/banshee-data/autopark/internal/scan"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Sweep returns raw samples starting at startAngle and advancing by step
// degrees, one per distance.
func Sweep(startAngle, step float64, distances ...float64) []scan.Sample {
	out := make([]scan.Sample, len(distances))
	for i, d := range distances {
		out[i] = scan.Sample{Angle: startAngle + float64(i)*step, Distance: d}
	}
	return out
}

// Buffer returns a normalized buffer over Sweep(startAngle, step, distances...).
func Buffer(startAngle, step float64, distances ...float64) scan.Buffer {
	return scan.Normalize(Sweep(startAngle, step, distances...), scan.Window{Min: -360, Max: 360})
}

// GapDistances returns a sweep profile with the three landmarks of a parking
// gap: a flat near car, a depth jump, a rising wall up to a peak, a falling
// face down to a trough and a rising far side. The returned indices are where
// the first, second and third corners sit.
func GapDistances() (distances []float64, first, second, third int) {
	distances = []float64{
		// near car
		300, 305, 300, 302,
		// wall, rising
		900, 950, 1000, 1050,
		// face of the car ahead, falling
		800, 600, 400,
		// side of the car ahead
		450, 500, 550, 600,
	}
	return distances, 3, 7, 10
}
