package park

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/timeutil"
)

// ErrMotionTimeout is returned when a relative move does not report
// completion within the move timeout.
var ErrMotionTimeout = errors.New("park: motion timeout")

// MotionController drives an arc at fixed wheel speeds. The default
// TimedMotion is open loop; an implementation may close the loop on odometry.
type MotionController interface {
	Arc(ctx context.Context, v planner.Velocities, d time.Duration) error
}

// TimedMotion commands the wheel speeds and waits d on the clock. The wheels
// keep turning until the next command.
type TimedMotion struct {
	Driver driver.Driver
	Clock  timeutil.Clock
}

func (m TimedMotion) Arc(ctx context.Context, v planner.Velocities, d time.Duration) error {
	if err := m.Driver.CommandVelocities(v.Left, v.Right); err != nil {
		return fmt.Errorf("command velocities %v: %w", v, err)
	}
	return timeutil.SleepContext(ctx, m.Clock, d)
}

// waitMove polls IsMoveComplete every poll until it reports true or timeout
// elapses.
func waitMove(ctx context.Context, drv driver.Driver, clock timeutil.Clock, timeout, poll time.Duration) error {
	start := clock.Now()
	for {
		done, err := drv.IsMoveComplete()
		if err != nil {
			return fmt.Errorf("poll move status: %w", err)
		}
		if done {
			return nil
		}
		if clock.Since(start) >= timeout {
			return fmt.Errorf("%w after %v", ErrMotionTimeout, timeout)
		}
		if err := timeutil.SleepContext(ctx, clock, poll); err != nil {
			return err
		}
	}
}

// moveRelative issues a straight move and waits for it.
func moveRelative(ctx context.Context, drv driver.Driver, clock timeutil.Clock, opts Options, distance float64) error {
	if err := drv.CommandRelativeMove(distance); err != nil {
		return fmt.Errorf("command move %.1f: %w", distance, err)
	}
	return waitMove(ctx, drv, clock, opts.MoveTimeout, opts.PollInterval)
}
