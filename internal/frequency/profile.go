package frequency

import "codeberg.org/mutker/thermalctl/internal/hardware"

// Profile holds the target frequency of each mode, in MHz.
type Profile struct {
	MinMHz      int
	MaxMHz      int
	Performance int
	Balanced    int
	PowerSaver  int
	Emergency   int
}

// ProfileFor derives the per-mode targets from the hardware range.
func ProfileFor(hw hardware.Profile) Profile {
	lo, hi := hw.MinMHz, hw.MaxMHz
	if hi < lo {
		lo, hi = hi, lo
	}
	span := hi - lo

	return Profile{
		MinMHz:      lo,
		MaxMHz:      hi,
		Performance: hi,
		Balanced:    lo + int(0.7*float64(span)),
		PowerSaver:  lo + int(0.5*float64(span)),
		Emergency:   lo,
	}
}

// For returns the target frequency of mode.
func (p Profile) For(mode Mode) int {
	switch mode {
	case ModePerformance:
		return p.Performance
	case ModeBalanced:
		return p.Balanced
	case ModePowerSaver:
		return p.PowerSaver
	case ModeEmergency:
		return p.Emergency
	}

	return p.Emergency
}

// Clamp limits mhz to the hardware range.
func (p Profile) Clamp(mhz int) int {
	return min(max(mhz, p.MinMHz), p.MaxMHz)
}
