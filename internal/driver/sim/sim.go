// Package sim is a simulated robot on a parking street. It ray-casts the
// range-finder against the street and integrates differential-drive motion
// over clock time, so a MockClock drives it deterministically.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/banshee-data/autopark/internal/driver"
	"github.com/banshee-data/autopark/internal/scan"
	"github.com/banshee-data/autopark/internal/timeutil"
	"github.com/banshee-data/autopark/internal/units"
)

// CommandKind identifies a driver call.
type CommandKind string

const (
	CommandVelocity CommandKind = "VEL"
	CommandMove     CommandKind = "MOVE"
	CommandReset    CommandKind = "RESET"
)

// Command is one recorded driver call.
type Command struct {
	Kind     CommandKind
	Left     float64
	Right    float64
	Distance float64
	At       time.Time
}

// IsMotion reports whether the command moves the base.
func (c Command) IsMotion() bool {
	switch c.Kind {
	case CommandMove:
		return c.Distance != 0
	case CommandVelocity:
		return c.Left != 0 || c.Right != 0
	}
	return false
}

// Pose is the robot position and heading (radians) in the street frame.
type Pose struct {
	Position r2.Point
	Heading  float64
}

// Options configure a Robot.
type Options struct {
	Street    Street
	Clock     timeutil.Clock
	WheelBase float64
	// MoveSpeed is the speed of relative moves in mm/s.
	MoveSpeed float64
	// Resolution is the angular step of a sweep in degrees.
	Resolution float64
	Window     scan.Window
	// Noise is the standard deviation (mm) added to every reading.
	Noise float64
	Seed  uint64
}

// DefaultOptions returns a robot on the default street with a real clock.
func DefaultOptions() Options {
	return Options{
		Street:     NewStreet(DefaultStreetParams()),
		Clock:      timeutil.RealClock{},
		WheelBase:  320,
		MoveSpeed:  300,
		Resolution: 0.5,
		Window:     scan.DefaultWindow(),
	}
}

// Robot implements driver.Driver against a Street.
type Robot struct {
	opts Options
	rng  *rand.Rand

	mu         sync.Mutex
	connected  bool
	sensorDown bool
	stalled    bool
	pose       Pose
	odomOrigin Pose
	left       float64
	right      float64
	lastUpdate time.Time
	move       *pendingMove
	commands   []Command
	scans      int
}

type pendingMove struct {
	distance float64
	done     time.Time
}

var _ driver.Driver = (*Robot)(nil)

// New returns a Robot at the street origin facing +x.
func New(opts Options) *Robot {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 0.5
	}
	if opts.MoveSpeed <= 0 {
		opts.MoveSpeed = 300
	}
	if opts.Window == (scan.Window{}) {
		opts.Window = scan.DefaultWindow()
	}
	return &Robot{
		opts:       opts,
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		lastUpdate: opts.Clock.Now(),
	}
}

func (r *Robot) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = true
	r.lastUpdate = r.opts.Clock.Now()
	return nil
}

// AcquireScan returns a sweep from the window's minimum to its maximum angle.
func (r *Robot) AcquireScan(ctx context.Context) ([]scan.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return nil, driver.ErrNotConnected
	}
	if r.sensorDown {
		r.mu.Unlock()
		return nil, driver.ErrSensorUnavailable
	}
	r.updateLocked()
	pose := r.pose
	r.scans++
	r.mu.Unlock()

	var out []scan.Sample
	w := r.opts.Window
	steps := int(math.Round((w.Max - w.Min) / r.opts.Resolution))
	for i := 0; i <= steps; i++ {
		angle := w.Min + float64(i)*r.opts.Resolution
		rad := units.Radians(angle) + pose.Heading
		dir := r2.Point{X: -math.Cos(rad), Y: -math.Sin(rad)}
		d := r.opts.Street.Cast(pose.Position, dir)
		if r.opts.Noise > 0 {
			d += r.rng.NormFloat64() * r.opts.Noise
			if d < 1 {
				d = 1
			}
		}
		out = append(out, scan.Sample{Angle: angle, Distance: d})
	}
	return out, nil
}

func (r *Robot) CommandVelocities(left, right float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return driver.ErrNotConnected
	}
	r.updateLocked()
	r.left, r.right = left, right
	r.record(Command{Kind: CommandVelocity, Left: left, Right: right})
	return nil
}

func (r *Robot) CommandRelativeMove(distance float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return driver.ErrNotConnected
	}
	r.updateLocked()
	r.left, r.right = 0, 0
	dur := time.Duration(math.Abs(distance) / r.opts.MoveSpeed * float64(time.Second))
	r.move = &pendingMove{distance: distance, done: r.opts.Clock.Now().Add(dur)}
	r.record(Command{Kind: CommandMove, Distance: distance})
	return nil
}

func (r *Robot) IsMoveComplete() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return false, driver.ErrNotConnected
	}
	r.updateLocked()
	return r.move == nil, nil
}

func (r *Robot) ResetPoseOrigin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return driver.ErrNotConnected
	}
	r.updateLocked()
	r.odomOrigin = r.pose
	r.record(Command{Kind: CommandReset})
	return nil
}

func (r *Robot) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLocked()
	r.left, r.right = 0, 0
	r.connected = false
	return nil
}

// SetSensorConnected simulates unplugging the range-finder.
func (r *Robot) SetSensorConnected(ok bool) {
	r.mu.Lock()
	r.sensorDown = !ok
	r.mu.Unlock()
}

// SetStalled makes relative moves never complete.
func (r *Robot) SetStalled(stalled bool) {
	r.mu.Lock()
	r.stalled = stalled
	r.mu.Unlock()
}

// Pose returns the current pose in the street frame.
func (r *Robot) Pose() Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLocked()
	return r.pose
}

// Odometry returns the pose relative to the last ResetPoseOrigin.
func (r *Robot) Odometry() Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateLocked()
	delta := r.pose.Position.Sub(r.odomOrigin.Position)
	c, s := math.Cos(-r.odomOrigin.Heading), math.Sin(-r.odomOrigin.Heading)
	return Pose{
		Position: r2.Point{X: delta.X*c - delta.Y*s, Y: delta.X*s + delta.Y*c},
		Heading:  r.pose.Heading - r.odomOrigin.Heading,
	}
}

// Commands returns every recorded command in order.
func (r *Robot) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// MotionCommands returns the recorded commands that move the base.
func (r *Robot) MotionCommands() []Command {
	var out []Command
	for _, c := range r.Commands() {
		if c.IsMotion() {
			out = append(out, c)
		}
	}
	return out
}

// Scans returns the number of sweeps delivered.
func (r *Robot) Scans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

func (r *Robot) String() string {
	p := r.Pose()
	return fmt.Sprintf("sim robot at (%.1f, %.1f) heading %.1f°", p.Position.X, p.Position.Y, units.Degrees(p.Heading))
}

func (r *Robot) record(c Command) {
	c.At = r.opts.Clock.Now()
	r.commands = append(r.commands, c)
}

// updateLocked advances the pose to the clock's current time. A pending
// relative move is applied whole once its duration has elapsed.
func (r *Robot) updateLocked() {
	now := r.opts.Clock.Now()
	dt := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now
	if dt > 0 && (r.left != 0 || r.right != 0) {
		r.pose = integrate(r.pose, r.left, r.right, r.opts.WheelBase, dt)
	}
	if r.move != nil && !r.stalled && !now.Before(r.move.done) {
		h := r.pose.Heading
		r.pose.Position = r.pose.Position.Add(r2.Point{X: math.Cos(h), Y: math.Sin(h)}.Mul(r.move.distance))
		r.move = nil
	}
}

// integrate moves p along the exact arc of a differential-drive base.
func integrate(p Pose, left, right, wheelBase, dt float64) Pose {
	v := (left + right) / 2
	if wheelBase <= 0 || left == right {
		dir := r2.Point{X: math.Cos(p.Heading), Y: math.Sin(p.Heading)}
		return Pose{Position: p.Position.Add(dir.Mul(v * dt)), Heading: p.Heading}
	}
	omega := (right - left) / wheelBase
	h1 := p.Heading + omega*dt
	radius := v / omega
	delta := r2.Point{
		X: radius * (math.Sin(h1) - math.Sin(p.Heading)),
		Y: -radius * (math.Cos(h1) - math.Cos(p.Heading)),
	}
	return Pose{Position: p.Position.Add(delta), Heading: units.Radians(units.NormalizeDegrees(units.Degrees(h1)))}
}
