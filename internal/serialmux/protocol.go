package serialmux

import (
	"fmt"
	"strconv"
	"strings"
)

// Line protocol spoken by the controller board. Commands are single lines;
// a sweep is returned as one "S <angle> <distance>" line per sample followed
// by "END".
const (
	CmdEnable    = "ENABLE"
	CmdScan      = "SCAN"
	CmdMoveDone  = "DONE?"
	CmdResetPose = "RESET"

	// LaserDegrees and LaserIncrement configure a 180° sweep at half-degree
	// steps.
	LaserDegrees   = 180
	LaserIncrement = 0.5
)

const (
	EventTypeSample     = "sample"
	EventTypeScanEnd    = "scan_end"
	EventTypeMoveStatus = "move_status"
	EventTypeError      = "error"
	EventTypeUnknown    = "unknown"
)

// InitCommands returns the start-up sequence for a robot limited to
// maxVelocity mm/s.
func InitCommands(maxVelocity float64) []string {
	return []string{
		CmdEnable,
		fmt.Sprintf("LASER %d %g", LaserDegrees, LaserIncrement),
		fmt.Sprintf("VMAX %g", maxVelocity),
	}
}

// VelocityCommand sets the left and right wheel speeds in mm/s.
func VelocityCommand(left, right float64) string {
	return fmt.Sprintf("VEL %.3f %.3f", left, right)
}

// MoveCommand starts a straight relative move of distance mm.
func MoveCommand(distance float64) string {
	return fmt.Sprintf("MOVE %.3f", distance)
}

// ClassifyPayload returns the event type of a line read from the device.
func ClassifyPayload(payload string) string {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return EventTypeUnknown
	}
	switch fields[0] {
	case "S":
		return EventTypeSample
	case "END":
		return EventTypeScanEnd
	case "DONE":
		return EventTypeMoveStatus
	case "ERR":
		return EventTypeError
	}
	return EventTypeUnknown
}

// ParseSample parses an "S <angle> <distance>" line.
func ParseSample(payload string) (angle, distance float64, err error) {
	fields := strings.Fields(payload)
	if len(fields) != 3 || fields[0] != "S" {
		return 0, 0, fmt.Errorf("malformed sample line %q", payload)
	}
	if angle, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return 0, 0, fmt.Errorf("bad angle in %q: %w", payload, err)
	}
	if distance, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return 0, 0, fmt.Errorf("bad distance in %q: %w", payload, err)
	}
	return angle, distance, nil
}

// ParseMoveStatus parses a "DONE 0|1" line.
func ParseMoveStatus(payload string) (bool, error) {
	fields := strings.Fields(payload)
	if len(fields) != 2 || fields[0] != "DONE" {
		return false, fmt.Errorf("malformed move status %q", payload)
	}
	switch fields[1] {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("bad move status %q", payload)
}

// KnownCommand reports whether the first word of command is a verb the
// board accepts.
func KnownCommand(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case CmdEnable, CmdScan, CmdMoveDone, CmdResetPose, "LASER", "VMAX", "VEL", "MOVE":
		return true
	}
	return false
}
