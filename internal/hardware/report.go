package hardware

import (
	"fmt"
	"strings"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}

	return "info"
}

// Issue is one compatibility finding about a profile.
type Issue struct {
	Severity Severity
	Message  string
}

// Compatibility lists what will limit thermal control on this machine.
// An empty result means every control path is available.
func Compatibility(p Profile) []Issue {
	var issues []Issue

	if p.Fallback {
		issues = append(issues, Issue{SeverityWarning,
			"CPU identification unreadable; using conservative defaults"})
	}
	if p.Generation == GenerationUnknown {
		issues = append(issues, Issue{SeverityWarning,
			fmt.Sprintf("unrecognized CPU %q; thermal ceiling defaults to %d°C", p.ModelName, p.ThermalMaxSafe)})
	}
	if !p.Has(MethodNative) {
		issues = append(issues, Issue{SeverityWarning,
			"no cpufreq interface; frequency control relies on fallback methods"})
	}
	if len(p.Methods) == 1 && p.Methods[0] == MethodManual {
		issues = append(issues, Issue{SeverityWarning,
			"no runtime frequency control available; only boot-parameter changes can help"})
	}
	for _, g := range p.GPUs {
		if g.Vendor != GPUVendorNVIDIA && !g.PowerProfile && !g.PowerCap {
			issues = append(issues, Issue{SeverityInfo,
				fmt.Sprintf("%s (%s) exposes no power controls", g.Card, g.Vendor)})
		}
	}

	return issues
}

// Report renders a human-readable description of the profile.
func Report(p Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CPU:            %s\n", orUnknown(p.ModelName))
	fmt.Fprintf(&b, "Vendor:         %s\n", p.Vendor)
	fmt.Fprintf(&b, "Generation:     %s\n", p.Generation)
	fmt.Fprintf(&b, "Cores:          %d\n", p.Cores)
	fmt.Fprintf(&b, "Frequency:      %d-%d MHz (current %d MHz)\n", p.MinMHz, p.MaxMHz, p.CurrentMHz)
	fmt.Fprintf(&b, "Driver:         %s\n", orUnknown(p.Driver))
	fmt.Fprintf(&b, "Thermal max:    %d°C\n", p.ThermalMaxSafe)
	fmt.Fprintf(&b, "Methods:        %s\n", strings.Join(methodNames(p.Methods), ", "))

	if len(p.GPUs) == 0 {
		b.WriteString("GPUs:           none\n")
	}
	for _, g := range p.GPUs {
		fmt.Fprintf(&b, "GPU:            %s %s (power profile: %t, power cap: %t)\n",
			g.Card, g.Vendor, g.PowerProfile, g.PowerCap)
	}

	issues := Compatibility(p)
	if len(issues) == 0 {
		b.WriteString("Compatibility:  ok\n")
		return b.String()
	}

	b.WriteString("Compatibility:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "  [%s] %s\n", issue.Severity, issue.Message)
	}

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}
