package thermal

import (
	"fmt"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/sensors"
)

// Default threshold positions as fractions of thermal-max-safe.
const (
	comfortFraction   = 0.65
	warningFraction   = 0.75
	criticalFraction  = 0.85
	emergencyFraction = 0.95
)

// Thresholds are the four band boundaries in °C. They must be strictly
// increasing.
type Thresholds struct {
	Comfort   float64 `json:"comfort"`
	Warning   float64 `json:"warning"`
	Critical  float64 `json:"critical"`
	Emergency float64 `json:"emergency"`
}

func DefaultThresholds(thermalMaxSafe int) Thresholds {
	m := float64(thermalMaxSafe)
	return Thresholds{
		Comfort:   m * comfortFraction,
		Warning:   m * warningFraction,
		Critical:  m * criticalFraction,
		Emergency: m * emergencyFraction,
	}
}

func (t Thresholds) Validate() error {
	if t.Comfort <= 0 || t.Comfort >= t.Warning || t.Warning >= t.Critical || t.Critical >= t.Emergency {
		return errors.New().WithData(ErrInvalidThresholds,
			fmt.Sprintf("%.1f/%.1f/%.1f/%.1f", t.Comfort, t.Warning, t.Critical, t.Emergency))
	}

	return nil
}

// Resolve applies the non-zero overrides on top of the defaults derived from
// thermalMaxSafe. A resulting set that is not increasing falls back to the
// defaults entirely.
func Resolve(thermalMaxSafe int, overrides Thresholds) (Thresholds, error) {
	t := DefaultThresholds(thermalMaxSafe)
	if overrides.Comfort > 0 {
		t.Comfort = overrides.Comfort
	}
	if overrides.Warning > 0 {
		t.Warning = overrides.Warning
	}
	if overrides.Critical > 0 {
		t.Critical = overrides.Critical
	}
	if overrides.Emergency > 0 {
		t.Emergency = overrides.Emergency
	}

	if err := t.Validate(); err != nil {
		return DefaultThresholds(thermalMaxSafe), err
	}

	return t, nil
}

// Sanitize returns t, or the derived defaults when t is invalid.
func (t Thresholds) Sanitize(thermalMaxSafe int) Thresholds {
	if t.Validate() != nil {
		return DefaultThresholds(thermalMaxSafe)
	}

	return t
}

func (t Thresholds) Band(temp float64) Band {
	switch {
	case temp < t.Comfort:
		return BandComfort
	case temp < t.Warning:
		return BandWarning
	case temp < t.Critical:
		return BandCritical
	case temp < t.Emergency:
		return BandHighRisk
	}

	return BandEmergency
}

// AlertLimits raises CPU alerts at the upper three boundaries.
func (t Thresholds) AlertLimits() sensors.AlertLimits {
	return sensors.AlertLimits{Warning: t.Warning, Critical: t.Critical, Emergency: t.Emergency}
}
