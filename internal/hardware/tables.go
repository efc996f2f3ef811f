package hardware

import (
	"regexp"
	"strings"
)

const (
	defaultThermalMax  = 85
	fallbackThermalMax = 70

	fallbackMinMHz   = 800
	fallbackMaxMHz   = 2000
	estimatedCeiling = 2000
)

type generationPattern struct {
	re         *regexp.Regexp
	generation Generation
}

// Ordered, first match wins.
var intelPatterns = []generationPattern{
	{regexp.MustCompile(`i[3579]-(?:[6-9]\d{3}|1\d{3})|Core\(TM\) Ultra|Core Ultra`), SkylakePlus},
	{regexp.MustCompile(`i[357]-5\d{3}`), Broadwell},
	{regexp.MustCompile(`i[357]-4\d{3}`), Haswell},
	{regexp.MustCompile(`i[357]-3\d{3}`), IvyBridge},
	{regexp.MustCompile(`i[357]-2\d{3}`), SandyBridge},
	{regexp.MustCompile(`Core\(TM\)2|Core 2|Pentium\(R\) Dual`), Core2},
	{regexp.MustCompile(`\bi[357]\b`), Nehalem},
}

var amdPatterns = []generationPattern{
	{regexp.MustCompile(`Ryzen|EPYC|Threadripper`), Zen},
	{regexp.MustCompile(`FX|Bulldozer|Piledriver`), Bulldozer},
	{regexp.MustCompile(`Phenom|Athlon\(tm\) II|Athlon II`), K10},
	{regexp.MustCompile(`Athlon\(tm\) 64|Athlon 64|Opteron|Turion`), K8},
}

// RegisterEntry maps a frequency to the value written to the performance
// control register (0x199).
type RegisterEntry struct {
	MHz   int
	Value uint64
}

var core2Registers = []RegisterEntry{
	{2833, 0x0615},
	{2666, 0x0514},
	{2500, 0x0513},
	{2333, 0x0512},
	{2166, 0x0411},
	{2000, 0x0610},
	{1833, 0x050F},
	{1666, 0x050E},
	{1500, 0x050D},
	{1333, 0x040C},
	{1200, 0x040B},
}

// RegisterTable returns the multiplier table for g, or nil when direct
// register writes are not known to be safe for it.
func RegisterTable(g Generation) []RegisterEntry {
	switch g {
	case Core2:
		return core2Registers
	case GenerationUnknown, Nehalem, SandyBridge, IvyBridge, Haswell, Broadwell, SkylakePlus,
		K8, K10, Bulldozer, Zen:
		return nil
	}

	return nil
}

// Classify derives vendor and generation from the model name, using the
// vendor id string when the model name does not mention the vendor.
func Classify(modelName, vendorID string) (Vendor, Generation) {
	vendor := VendorUnknown
	switch {
	case strings.Contains(modelName, "Intel"), vendorID == "GenuineIntel":
		vendor = VendorIntel
	case strings.Contains(modelName, "AMD"), vendorID == "AuthenticAMD":
		vendor = VendorAMD
	}

	var table []generationPattern
	switch vendor {
	case VendorIntel:
		table = intelPatterns
	case VendorAMD:
		table = amdPatterns
	case VendorUnknown:
		return vendor, GenerationUnknown
	}

	for _, p := range table {
		if p.re.MatchString(modelName) {
			return vendor, p.generation
		}
	}

	return vendor, GenerationUnknown
}

// ThermalMaxSafe returns the highest safe sustained temperature in °C.
func ThermalMaxSafe(g Generation) int {
	switch g {
	case Core2:
		return 85
	case Nehalem, SandyBridge:
		return 95
	case IvyBridge, Haswell, Broadwell, SkylakePlus:
		return 100
	case K8, K10:
		return 70
	case Bulldozer:
		return 75
	case Zen:
		return 95
	case GenerationUnknown:
		return defaultThermalMax
	}

	return defaultThermalMax
}
