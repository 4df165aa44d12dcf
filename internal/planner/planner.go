// Package planner computes the two-arc maneuver that backs the robot into a
// parallel space.
//
// The path is a straight approach followed by two arcs of the same turning
// radius R. The first arc turns about Circle2, which sits R below the travel
// line; the second turns about Circle1, whose position is fixed by the car
// behind and the wall. Equal radii put the tangent point at the midpoint of
// the two centres, so Circle2 follows in closed form.
package planner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"

	"github.com/banshee-data/autopark/internal/corner"
	"github.com/banshee-data/autopark/internal/units"
)

var (
	// ErrInfeasibleGeometry is returned when no pair of tangent arcs joins
	// the travel line to the space.
	ErrInfeasibleGeometry = errors.New("planner: infeasible geometry")
	// ErrDegenerateCorners is returned for missing or zero-length corner
	// readings and for robot parameters that admit no turn.
	ErrDegenerateCorners = errors.New("planner: degenerate corners")
)

// minDistance is the smallest corner distance (mm) treated as a reading.
const minDistance = 1e-6

// Params describe the robot. Lengths are millimetres, velocity mm/s.
type Params struct {
	TurningRadius   float64
	RobotRadius     float64
	RobotBack       float64
	WheelBase       float64
	WallMargin      float64
	MaxVelocity     float64
	ApproachBackoff float64
}

// Velocities is a differential-drive wheel speed pair in mm/s.
type Velocities struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

func (v Velocities) String() string {
	return fmt.Sprintf("(%f, %f)", v.Left, v.Right)
}

// Plan is the computed maneuver together with its intermediate values.
type Plan struct {
	// ForwardOffset is the straight approach distance.
	ForwardOffset float64 `json:"forward_offset"`
	// FirstTurn and SecondTurn are driven for TurnDuration each.
	FirstTurn    Velocities    `json:"first_turn"`
	SecondTurn   Velocities    `json:"second_turn"`
	TurnDuration time.Duration `json:"turn_duration"`

	CarX            float64  `json:"car_x"`
	WallY           float64  `json:"wall_y"`
	Circle1         r2.Point `json:"circle1"`
	Circle2         r2.Point `json:"circle2"`
	Tangent         r2.Point `json:"tangent"`
	WheelRatio      float64  `json:"wheel_ratio"`
	TurnAngle       float64  `json:"turn_angle"`
	AngularVelocity float64  `json:"angular_velocity"`
}

// Planner computes maneuvers for a fixed robot.
type Planner struct {
	params Params
}

// New returns a Planner for the given robot parameters.
func New(p Params) *Planner {
	return &Planner{params: p}
}

// Params returns the robot parameters.
func (p *Planner) Params() Params {
	return p.params
}

// Plan computes the maneuver from the near edge of the car behind (first) and
// the deepest point of the gap (second). It has no side effects.
func (p *Planner) Plan(first, second corner.Corner) (*Plan, error) {
	prm := p.params
	r := prm.TurningRadius

	if !first.Found || !second.Found {
		return nil, fmt.Errorf("%w: corner missing", ErrDegenerateCorners)
	}
	if first.Distance < minDistance || second.Distance < minDistance {
		return nil, fmt.Errorf("%w: zero distance", ErrDegenerateCorners)
	}
	if first.Angle == second.Angle {
		return nil, fmt.Errorf("%w: corners on one ray at %f°", ErrDegenerateCorners, first.Angle)
	}
	if 2*r <= prm.WheelBase || prm.WheelBase <= 0 {
		return nil, fmt.Errorf("%w: turning radius %f too small for wheel base %f", ErrDegenerateCorners, r, prm.WheelBase)
	}

	carX := -math.Cos(units.Radians(first.Angle)) * first.Distance
	wallY := -math.Sin(units.Radians(second.Angle)) * second.Distance

	c1 := r2.Point{X: carX + prm.RobotBack, Y: wallY + prm.RobotRadius + r + prm.WallMargin}
	c2y := -r

	half := (c2y - c1.Y) / 2
	radicand := r*r - half*half
	if radicand < 0 {
		return nil, fmt.Errorf("%w: circle centres %f mm apart vertically, limit %f", ErrInfeasibleGeometry, math.Abs(c2y-c1.Y), 2*r)
	}
	tangentX := c1.X + math.Sqrt(radicand)
	c2 := r2.Point{X: 2*tangentX - c1.X, Y: c2y}
	tangent := c1.Add(c2).Mul(0.5)

	k := 2 * r / prm.WheelBase
	ratio := (k + 1) / (k - 1)
	inner := -(prm.MaxVelocity * 2) / (1 + ratio)
	outer := ratio * inner

	turnAngle := math.Atan2(c1.Y-c2.Y, c2.X-c1.X)
	omega := (inner - outer) / prm.WheelBase
	if omega == 0 {
		return nil, fmt.Errorf("%w: zero angular velocity", ErrDegenerateCorners)
	}
	seconds := math.Abs((math.Pi/2 - turnAngle) / omega)

	return &Plan{
		ForwardOffset:   c2.X - prm.ApproachBackoff,
		FirstTurn:       Velocities{Left: outer, Right: inner},
		SecondTurn:      Velocities{Left: inner, Right: outer},
		TurnDuration:    time.Duration(seconds * float64(time.Second)),
		CarX:            carX,
		WallY:           wallY,
		Circle1:         c1,
		Circle2:         c2,
		Tangent:         tangent,
		WheelRatio:      ratio,
		TurnAngle:       turnAngle,
		AngularVelocity: omega,
	}, nil
}
