package frequency

import (
	"strings"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

// Mode is a power mode, ordered from least to most conservative.
type Mode int

const (
	ModePerformance Mode = iota
	ModeBalanced
	ModePowerSaver
	ModeEmergency
)

func (m Mode) String() string {
	switch m {
	case ModePerformance:
		return "performance"
	case ModeBalanced:
		return "balanced"
	case ModePowerSaver:
		return "powersaver"
	case ModeEmergency:
		return "emergency"
	}

	return "unknown"
}

// AtLeast reports whether m is at least as conservative as other.
func (m Mode) AtLeast(other Mode) bool {
	return m >= other
}

// ParseMode accepts the mode names printed by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "performance":
		return ModePerformance, nil
	case "balanced":
		return ModeBalanced, nil
	case "powersaver", "powersave":
		return ModePowerSaver, nil
	case "emergency":
		return ModeEmergency, nil
	}

	return ModeBalanced, errors.New().WithData(errors.ErrInvalidArgument, s)
}
