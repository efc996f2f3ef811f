package thermal

import "codeberg.org/mutker/thermalctl/internal/frequency"

type Mode = frequency.Mode

const (
	ModePerformance = frequency.ModePerformance
	ModeBalanced    = frequency.ModeBalanced
	ModePowerSaver  = frequency.ModePowerSaver
	ModeEmergency   = frequency.ModeEmergency
)

// Band is a named temperature range, coolest first.
type Band int

const (
	BandComfort Band = iota
	BandWarning
	BandCritical
	BandHighRisk
	BandEmergency
)

func (b Band) String() string {
	switch b {
	case BandComfort:
		return "comfort"
	case BandWarning:
		return "warning"
	case BandCritical:
		return "critical"
	case BandHighRisk:
		return "high-risk"
	case BandEmergency:
		return "emergency"
	}

	return "unknown"
}

// MinimumMode is the least conservative mode acceptable in b.
func (b Band) MinimumMode() Mode {
	switch b {
	case BandComfort:
		return ModePerformance
	case BandWarning:
		return ModeBalanced
	case BandCritical:
		return ModePowerSaver
	case BandHighRisk, BandEmergency:
		return ModeEmergency
	}

	return ModeEmergency
}

const (
	// MaxEscalation is the counter ceiling, also set outright in the
	// emergency band.
	MaxEscalation = 10
	// Above this many consecutive critical ticks the mode is forced to
	// Emergency.
	escalationLimit = 3

	preventiveNice = 5
	baseNice       = 10
	maxNice        = 19
)

// FanTiers are the duty percentages applied per band.
type FanTiers struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
	Max    int `json:"max"`
}

func DefaultFanTiers() FanTiers {
	return FanTiers{Low: 30, Medium: 50, High: 75, Max: 100}
}

func (f FanTiers) For(b Band) int {
	switch b {
	case BandComfort:
		return f.Low
	case BandWarning:
		return f.Medium
	case BandCritical:
		return f.High
	case BandHighRisk, BandEmergency:
		return f.Max
	}

	return f.Max
}

// Escalation is the state carried from one thermal tick to the next.
type Escalation struct {
	Mode    Mode
	Counter int
	// Band of the previous tick.
	Band Band
}

// Decision is the outcome of one tick.
type Decision struct {
	Escalation
	// Nice is the priority to apply to workloads, 0 for none.
	Nice int
	Kill bool
}

// Decide computes the next state from the previous one and the control
// temperature.
func Decide(prev Escalation, temp float64, t Thresholds) Decision {
	band := t.Band(temp)
	d := Decision{Escalation: Escalation{Mode: prev.Mode, Counter: prev.Counter, Band: band}}

	switch band {
	case BandComfort:
		switch prev.Mode {
		case ModeEmergency:
			d.Mode = ModePowerSaver
		case ModePowerSaver:
			d.Mode = ModeBalanced
		case ModePerformance, ModeBalanced:
		}
		d.Counter = 0

	case BandWarning:
		if prev.Mode == ModePerformance {
			d.Mode = ModeBalanced
			d.Nice = preventiveNice
		}

	case BandCritical:
		if prev.Band < BandCritical {
			d.Counter = max(prev.Counter, 1)
		} else {
			d.Counter = min(prev.Counter+1, MaxEscalation)
		}
		if d.Counter <= escalationLimit {
			d.Mode = ModePowerSaver
			d.Nice = baseNice + 2*d.Counter
		} else {
			d.Mode = ModeEmergency
			d.Nice = maxNice
		}

	case BandHighRisk:
		d.Mode = ModeEmergency
		d.Nice = maxNice

	case BandEmergency:
		d.Mode = ModeEmergency
		d.Nice = maxNice
		d.Counter = MaxEscalation
		d.Kill = true
	}

	return d
}
