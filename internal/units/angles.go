// Package units provides the angle conversions shared by the scan, planner and
// simulator packages. Lengths are millimetres throughout, so only angles need
// converting.
package units

import "math"

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeDegrees wraps an angle into the half-open interval (-180, 180].
func NormalizeDegrees(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a <= -180 {
		a += 360
	} else if a > 180 {
		a -= 360
	}
	return a
}
