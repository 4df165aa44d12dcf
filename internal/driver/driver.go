// Package driver defines the boundary between the parking logic and the robot
// hardware: one range-finder and a differential-drive base.
package driver

import (
	"context"
	"errors"

	"github.com/banshee-data/autopark/internal/scan"
)

// ErrSensorUnavailable is returned when the range-finder cannot deliver a
// sweep, typically because the device is disconnected.
var ErrSensorUnavailable = errors.New("driver: sensor unavailable")

// ErrNotConnected is returned by commands issued before Connect.
var ErrNotConnected = errors.New("driver: not connected")

// Driver is implemented by the hardware layer.
type Driver interface {
	// Connect opens the base and the range-finder and enables the motors.
	Connect(ctx context.Context) error

	// AcquireScan blocks until a full sweep is available and returns a copy
	// of its samples in device order.
	AcquireScan(ctx context.Context) ([]scan.Sample, error)

	// CommandVelocities sets the wheel speeds in mm/s and returns at once.
	CommandVelocities(left, right float64) error

	// CommandRelativeMove starts a straight move of distance mm. Completion
	// is polled with IsMoveComplete.
	CommandRelativeMove(distance float64) error

	// IsMoveComplete reports whether the last relative move has finished.
	IsMoveComplete() (bool, error)

	// ResetPoseOrigin rebases dead reckoning to (0, 0, 0).
	ResetPoseOrigin() error

	// Close stops the base and releases the devices.
	Close() error
}
