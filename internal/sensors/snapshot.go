package sensors

import (
	"fmt"
	"strings"
	"time"
)

const maxVoltages = 5

// Snapshot is one merged, selected view of all sensor backends. Absent
// fields mean "no reading", never zero.
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	CPUTemp   *float64           `json:"cpu_temp,omitempty"`
	GPUTemp   *float64           `json:"gpu_temp,omitempty"`
	FanRPM    *float64           `json:"fan_rpm,omitempty"`
	GPUFan    *float64           `json:"gpu_fan_pct,omitempty"`
	CPUPower  *float64           `json:"cpu_power,omitempty"`
	GPUPower  *float64           `json:"gpu_power,omitempty"`
	Voltages  map[string]float64 `json:"voltages,omitempty"`
	Alerts    []string           `json:"alerts,omitempty"`
	Readings  []Reading          `json:"-"`
}

// Temperature is the control temperature: the hotter of CPU and GPU.
func (s Snapshot) Temperature() (float64, bool) {
	switch {
	case s.CPUTemp != nil && s.GPUTemp != nil:
		return max(*s.CPUTemp, *s.GPUTemp), true
	case s.CPUTemp != nil:
		return *s.CPUTemp, true
	case s.GPUTemp != nil:
		return *s.GPUTemp, true
	}

	return 0, false
}

// AlertLimits are the CPU thresholds alerts are raised against.
type AlertLimits struct {
	Warning   float64
	Critical  float64
	Emergency float64
}

// Fixed GPU alert limits.
var gpuLimits = AlertLimits{Warning: 75, Critical: 85, Emergency: 95}

func buildSnapshot(at time.Time, readings []Reading, limits AlertLimits) Snapshot {
	s := Snapshot{Timestamp: at, Readings: readings}

	s.CPUTemp = selectValue(readings, KindTemperature,
		func(r Reading) bool { return !isGPUChip(r.Chip) && labelHas(r, "package", "tctl", "tdie") },
		func(r Reading) bool { return isCPUChip(r.Chip) },
		func(r Reading) bool { return !isGPUChip(r.Chip) },
	)
	s.GPUTemp = selectValue(readings, KindTemperature,
		func(r Reading) bool { return isGPUChip(r.Chip) && labelHas(r, "edge", "junction") },
		func(r Reading) bool { return isGPUChip(r.Chip) },
	)
	s.FanRPM = selectValue(readings, KindFan,
		func(r Reading) bool {
			return r.Unit == UnitRPM && !isGPUChip(r.Chip) &&
				(labelHas(r, "cpu") || strings.EqualFold(r.Label, "fan1"))
		},
		func(r Reading) bool { return r.Unit == UnitRPM && !isGPUChip(r.Chip) },
	)
	s.GPUFan = selectValue(readings, KindFan,
		func(r Reading) bool { return r.Unit == UnitPercent && isGPUChip(r.Chip) },
	)
	s.CPUPower = selectValue(readings, KindPower,
		func(r Reading) bool { return !isGPUChip(r.Chip) && labelHas(r, "package", "cpu") },
	)
	s.GPUPower = selectValue(readings, KindPower,
		func(r Reading) bool { return isGPUChip(r.Chip) },
	)

	for _, r := range readings {
		if r.Kind != KindVoltage {
			continue
		}
		if len(s.Voltages) == maxVoltages {
			break
		}
		if s.Voltages == nil {
			s.Voltages = make(map[string]float64, maxVoltages)
		}
		s.Voltages[r.Chip+"/"+r.Label] = r.Value
	}

	if s.CPUTemp != nil {
		if a := alert("CPU", *s.CPUTemp, limits); a != "" {
			s.Alerts = append(s.Alerts, a)
		}
	}
	if s.GPUTemp != nil {
		if a := alert("GPU", *s.GPUTemp, gpuLimits); a != "" {
			s.Alerts = append(s.Alerts, a)
		}
	}

	return s
}

// selectValue returns the first reading of kind matching the earliest
// predicate that matches anything.
func selectValue(readings []Reading, kind Kind, preds ...func(Reading) bool) *float64 {
	for _, pred := range preds {
		for _, r := range readings {
			if r.Kind == kind && pred(r) {
				v := r.Value
				return &v
			}
		}
	}

	return nil
}

func labelHas(r Reading, subs ...string) bool {
	label := strings.ToLower(r.Label)
	for _, s := range subs {
		if strings.Contains(label, s) {
			return true
		}
	}

	return false
}

func alert(device string, temp float64, limits AlertLimits) string {
	var level string
	switch {
	case limits.Emergency > 0 && temp >= limits.Emergency:
		level = "emergency"
	case limits.Critical > 0 && temp >= limits.Critical:
		level = "critical"
	case limits.Warning > 0 && temp >= limits.Warning:
		level = "warning"
	default:
		return ""
	}

	return fmt.Sprintf("%s temperature %s: %.1f°C", device, level, temp)
}
