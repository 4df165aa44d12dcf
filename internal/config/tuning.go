package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds every numeric constant of the parking run: detection
// thresholds, retry budgets, robot geometry and motion timing. All lengths
// are millimetres, angles are degrees and velocities are mm/s.
type TuningConfig struct {
	// Detection params
	DepthBound            *float64 `json:"depth_bound,omitempty"`
	WidthBound            *float64 `json:"width_bound,omitempty"`
	FirstCornerAngleBound *float64 `json:"first_corner_angle_bound,omitempty"`
	MinScanAngle          *float64 `json:"min_scan_angle,omitempty"`
	MaxScanAngle          *float64 `json:"max_scan_angle,omitempty"`

	// Search params
	MaxMoves     *int     `json:"max_moves,omitempty"`
	MaxScans     *int     `json:"max_scans,omitempty"`
	MoveDistance *float64 `json:"move_distance,omitempty"`

	// Robot geometry
	TurningRadius *float64 `json:"turning_radius,omitempty"`
	RobotRadius   *float64 `json:"robot_radius,omitempty"`
	RobotBack     *float64 `json:"robot_back,omitempty"`
	WheelBase     *float64 `json:"wheel_base,omitempty"`

	// Maneuver params
	WallMargin      *float64 `json:"wall_margin,omitempty"`
	MaxVelocity     *float64 `json:"max_velocity,omitempty"`
	ApproachBackoff *float64 `json:"approach_backoff,omitempty"`
	AheadMargin     *float64 `json:"ahead_margin,omitempty"`

	// Timing params, duration strings like "500ms"
	MoveTimeout  *string `json:"move_timeout,omitempty"`
	PollInterval *string `json:"poll_interval,omitempty"`
	SettleTime   *string `json:"settle_time,omitempty"`
	ScanDelay    *string `json:"scan_delay,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		DepthBound:            ptrFloat64(c.GetDepthBound()),
		WidthBound:            ptrFloat64(c.GetWidthBound()),
		FirstCornerAngleBound: ptrFloat64(c.GetFirstCornerAngleBound()),
		MinScanAngle:          ptrFloat64(c.GetMinScanAngle()),
		MaxScanAngle:          ptrFloat64(c.GetMaxScanAngle()),
		MaxMoves:              ptrInt(c.GetMaxMoves()),
		MaxScans:              ptrInt(c.GetMaxScans()),
		MoveDistance:          ptrFloat64(c.GetMoveDistance()),
		TurningRadius:         ptrFloat64(c.GetTurningRadius()),
		RobotRadius:           ptrFloat64(c.GetRobotRadius()),
		RobotBack:             ptrFloat64(c.GetRobotBack()),
		WheelBase:             ptrFloat64(c.GetWheelBase()),
		WallMargin:            ptrFloat64(c.GetWallMargin()),
		MaxVelocity:           ptrFloat64(c.GetMaxVelocity()),
		ApproachBackoff:       ptrFloat64(c.GetApproachBackoff()),
		AheadMargin:           ptrFloat64(c.GetAheadMargin()),
		MoveTimeout:           ptrString(c.GetMoveTimeout().String()),
		PollInterval:          ptrString(c.GetPollInterval().String()),
		SettleTime:            ptrString(c.GetSettleTime().String()),
		ScanDelay:             ptrString(c.GetScanDelay().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/driver/sim/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DepthBound != nil && *c.DepthBound <= 0 {
		return fmt.Errorf("depth_bound must be positive, got %f", *c.DepthBound)
	}
	if c.WidthBound != nil && *c.WidthBound < 0 {
		return fmt.Errorf("width_bound must be non-negative, got %f", *c.WidthBound)
	}
	if c.MaxMoves != nil && *c.MaxMoves < 1 {
		return fmt.Errorf("max_moves must be at least 1, got %d", *c.MaxMoves)
	}
	if c.MaxScans != nil && *c.MaxScans < 1 {
		return fmt.Errorf("max_scans must be at least 1, got %d", *c.MaxScans)
	}
	if c.GetMinScanAngle() >= c.GetMaxScanAngle() {
		return fmt.Errorf("min_scan_angle %f must be below max_scan_angle %f", c.GetMinScanAngle(), c.GetMaxScanAngle())
	}

	// The wheel ratio has a pole at 2R == wheel base.
	if 2*c.GetTurningRadius() <= c.GetWheelBase() {
		return fmt.Errorf("turning_radius %f must exceed half the wheel_base %f", c.GetTurningRadius(), c.GetWheelBase())
	}
	if c.MaxVelocity != nil && *c.MaxVelocity <= 0 {
		return fmt.Errorf("max_velocity must be positive, got %f", *c.MaxVelocity)
	}

	// Waits may be zero; the move timeout and poll interval may not.
	for _, d := range []struct {
		name     string
		v        *string
		positive bool
	}{
		{"move_timeout", c.MoveTimeout, true},
		{"poll_interval", c.PollInterval, true},
		{"settle_time", c.SettleTime, false},
		{"scan_delay", c.ScanDelay, false},
	} {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if d.positive && parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, parsed)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", d.name, parsed)
		}
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetDepthBound returns the minimum depth jump (mm) that marks the first corner.
func (c *TuningConfig) GetDepthBound() float64 {
	if c.DepthBound == nil {
		return 100.0
	}
	return *c.DepthBound
}

// GetWidthBound returns the minimum usable space width (mm).
func (c *TuningConfig) GetWidthBound() float64 {
	if c.WidthBound == nil {
		return 605.0
	}
	return *c.WidthBound
}

// GetFirstCornerAngleBound returns the largest trusted first-corner angle (deg).
func (c *TuningConfig) GetFirstCornerAngleBound() float64 {
	if c.FirstCornerAngleBound == nil {
		return 150.0
	}
	return *c.FirstCornerAngleBound
}

// GetMinScanAngle returns the start of the side-scanning window (deg).
func (c *TuningConfig) GetMinScanAngle() float64 {
	if c.MinScanAngle == nil {
		return 90.0
	}
	return *c.MinScanAngle
}

// GetMaxScanAngle returns the end of the side-scanning window (deg).
func (c *TuningConfig) GetMaxScanAngle() float64 {
	if c.MaxScanAngle == nil {
		return 180.0
	}
	return *c.MaxScanAngle
}

// GetMaxMoves returns the number of positions tried before giving up.
func (c *TuningConfig) GetMaxMoves() int {
	if c.MaxMoves == nil {
		return 5
	}
	return *c.MaxMoves
}

// GetMaxScans returns the number of scans taken at each position.
func (c *TuningConfig) GetMaxScans() int {
	if c.MaxScans == nil {
		return 3
	}
	return *c.MaxScans
}

// GetMoveDistance returns the repositioning move length (mm).
func (c *TuningConfig) GetMoveDistance() float64 {
	if c.MoveDistance == nil {
		return 300.0
	}
	return *c.MoveDistance
}

// GetTurningRadius returns the radius of both maneuver arcs (mm).
func (c *TuningConfig) GetTurningRadius() float64 {
	if c.TurningRadius == nil {
		return 525.0
	}
	return *c.TurningRadius
}

// GetRobotRadius returns the robot's half width (mm).
func (c *TuningConfig) GetRobotRadius() float64 {
	if c.RobotRadius == nil {
		return 227.5
	}
	return *c.RobotRadius
}

// GetRobotBack returns the rear overhang behind the sensor (mm).
func (c *TuningConfig) GetRobotBack() float64 {
	if c.RobotBack == nil {
		return 425.0
	}
	return *c.RobotBack
}

// GetWheelBase returns the wheel separation (mm).
func (c *TuningConfig) GetWheelBase() float64 {
	if c.WheelBase == nil {
		return 320.0
	}
	return *c.WheelBase
}

// GetWallMargin returns the lateral clearance kept from the wall (mm).
func (c *TuningConfig) GetWallMargin() float64 {
	if c.WallMargin == nil {
		return 30.0
	}
	return *c.WallMargin
}

// GetMaxVelocity returns the commanded maximum velocity (mm/s).
func (c *TuningConfig) GetMaxVelocity() float64 {
	if c.MaxVelocity == nil {
		return 300.0
	}
	return *c.MaxVelocity
}

// GetApproachBackoff returns how far short of the second circle centre the approach stops (mm).
func (c *TuningConfig) GetApproachBackoff() float64 {
	if c.ApproachBackoff == nil {
		return 150.0
	}
	return *c.ApproachBackoff
}

// GetAheadMargin returns the clearance to the car ahead above which the robot creeps forward (mm).
func (c *TuningConfig) GetAheadMargin() float64 {
	if c.AheadMargin == nil {
		return 200.0
	}
	return *c.AheadMargin
}

// GetMoveTimeout returns the bound on any wait for motion completion.
func (c *TuningConfig) GetMoveTimeout() time.Duration {
	return durationOr(c.MoveTimeout, 30*time.Second)
}

// GetPollInterval returns the interval between move-complete polls.
func (c *TuningConfig) GetPollInterval() time.Duration {
	return durationOr(c.PollInterval, 100*time.Millisecond)
}

// GetSettleTime returns the pause after stopping before the recheck scan.
func (c *TuningConfig) GetSettleTime() time.Duration {
	return durationOr(c.SettleTime, 2*time.Second)
}

// GetScanDelay returns the pause before each scan acquisition.
func (c *TuningConfig) GetScanDelay() time.Duration {
	return durationOr(c.ScanDelay, 500*time.Millisecond)
}
