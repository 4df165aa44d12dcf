package park

import (
	"time"

	"github.com/banshee-data/autopark/internal/config"
	"github.com/banshee-data/autopark/internal/planner"
	"github.com/banshee-data/autopark/internal/scan"
)

// Options carry every tunable used by a run. Lengths are millimetres and
// angles degrees.
type Options struct {
	Window scan.Window

	DepthBound            float64
	WidthBound            float64
	FirstCornerAngleBound float64

	MaxMoves     int
	MaxScans     int
	MoveDistance float64

	RobotRadius float64
	AheadMargin float64

	MoveTimeout  time.Duration
	PollInterval time.Duration
	SettleTime   time.Duration
	ScanDelay    time.Duration

	Planner planner.Params
}

// OptionsFromConfig resolves cfg, falling back to defaults for unset fields.
func OptionsFromConfig(cfg *config.TuningConfig) Options {
	return Options{
		Window:                scan.Window{Min: cfg.GetMinScanAngle(), Max: cfg.GetMaxScanAngle()},
		DepthBound:            cfg.GetDepthBound(),
		WidthBound:            cfg.GetWidthBound(),
		FirstCornerAngleBound: cfg.GetFirstCornerAngleBound(),
		MaxMoves:              cfg.GetMaxMoves(),
		MaxScans:              cfg.GetMaxScans(),
		MoveDistance:          cfg.GetMoveDistance(),
		RobotRadius:           cfg.GetRobotRadius(),
		AheadMargin:           cfg.GetAheadMargin(),
		MoveTimeout:           cfg.GetMoveTimeout(),
		PollInterval:          cfg.GetPollInterval(),
		SettleTime:            cfg.GetSettleTime(),
		ScanDelay:             cfg.GetScanDelay(),
		Planner: planner.Params{
			TurningRadius:   cfg.GetTurningRadius(),
			RobotRadius:     cfg.GetRobotRadius(),
			RobotBack:       cfg.GetRobotBack(),
			WheelBase:       cfg.GetWheelBase(),
			WallMargin:      cfg.GetWallMargin(),
			MaxVelocity:     cfg.GetMaxVelocity(),
			ApproachBackoff: cfg.GetApproachBackoff(),
		},
	}
}
