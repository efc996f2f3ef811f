package sensors

import (
	"context"
	"strings"
)

// Kind is the physical quantity a reading measures.
type Kind int

const (
	KindTemperature Kind = iota
	KindFan
	KindVoltage
	KindPower
	KindCurrent
	KindEnergy
)

func (k Kind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindFan:
		return "fan"
	case KindVoltage:
		return "voltage"
	case KindPower:
		return "power"
	case KindCurrent:
		return "current"
	case KindEnergy:
		return "energy"
	}

	return "unknown"
}

// Units, as normalized by every backend.
const (
	UnitCelsius = "°C"
	UnitRPM     = "RPM"
	UnitPercent = "%"
	UnitVolt    = "V"
	UnitWatt    = "W"
	UnitAmpere  = "A"
	UnitJoule   = "J"
	UnitWattHr  = "Wh"
)

// Reading is one normalized sensor value.
type Reading struct {
	Kind  Kind
	Value float64
	Unit  string
	Chip  string
	Label string
	// Path is the file backing the reading, when there is one.
	Path   string
	Source string
}

type readingKey struct {
	chip, label string
	kind        Kind
}

func (r Reading) key() readingKey {
	return readingKey{chip: r.Chip, label: strings.ToLower(r.Label), kind: r.Kind}
}

// Backend is one source of sensor readings.
type Backend interface {
	Name() string
	Read(ctx context.Context) ([]Reading, error)
}

var gpuChips = []string{"amdgpu", "radeon", "nouveau", "i915", "xe", "nvml"}

var cpuChips = []string{"coretemp", "k10temp", "k8temp", "zenpower", "x86_pkg_temp", "cpu_thermal", "acpitz", "fam15h_power"}

func isGPUChip(chip string) bool {
	return matchesChip(chip, gpuChips) || strings.HasPrefix(chip, nvmlChip)
}

func isCPUChip(chip string) bool {
	return matchesChip(chip, cpuChips) || strings.Contains(strings.ToLower(chip), "cpu")
}

func matchesChip(chip string, names []string) bool {
	chip = strings.ToLower(chip)
	for _, n := range names {
		if chip == n || strings.HasPrefix(chip, n+"-") {
			return true
		}
	}

	return false
}
