package hardware

import "strings"

// Vendor identifies the CPU manufacturer.
type Vendor int

const (
	VendorUnknown Vendor = iota
	VendorIntel
	VendorAMD
)

func (v Vendor) String() string {
	switch v {
	case VendorIntel:
		return "Intel"
	case VendorAMD:
		return "AMD"
	case VendorUnknown:
		return "Unknown"
	}

	return "Unknown"
}

// Generation is the CPU microarchitecture family, oldest first within each vendor.
type Generation int

const (
	GenerationUnknown Generation = iota
	Core2
	Nehalem
	SandyBridge
	IvyBridge
	Haswell
	Broadwell
	SkylakePlus
	K8
	K10
	Bulldozer
	Zen
)

func (g Generation) String() string {
	switch g {
	case Core2:
		return "Core2"
	case Nehalem:
		return "Nehalem"
	case SandyBridge:
		return "SandyBridge"
	case IvyBridge:
		return "IvyBridge"
	case Haswell:
		return "Haswell"
	case Broadwell:
		return "Broadwell"
	case SkylakePlus:
		return "SkylakePlus"
	case K8:
		return "K8"
	case K10:
		return "K10"
	case Bulldozer:
		return "Bulldozer"
	case Zen:
		return "Zen"
	case GenerationUnknown:
		return "Unknown"
	}

	return "Unknown"
}

// Method is one way of changing the CPU frequency. Profiles list them in the
// order they should be attempted.
type Method int

const (
	MethodNone Method = iota
	MethodNative
	MethodRegister
	MethodUtility
	MethodManual
)

func (m Method) String() string {
	switch m {
	case MethodNative:
		return "native"
	case MethodRegister:
		return "register"
	case MethodUtility:
		return "utility"
	case MethodManual:
		return "manual"
	case MethodNone:
		return "none"
	}

	return "none"
}

type GPUVendor int

const (
	GPUVendorUnknown GPUVendor = iota
	GPUVendorNVIDIA
	GPUVendorAMD
	GPUVendorIntel
)

func (v GPUVendor) String() string {
	switch v {
	case GPUVendorNVIDIA:
		return "NVIDIA"
	case GPUVendorAMD:
		return "AMD"
	case GPUVendorIntel:
		return "Intel"
	case GPUVendorUnknown:
		return "Unknown"
	}

	return "Unknown"
}

// GPU is a graphics adapter found under the DRM class tree.
type GPU struct {
	Card   string
	Vendor GPUVendor
	// PowerProfile is set when the driver exposes a forced performance level.
	PowerProfile bool
	// PowerCap is set when the driver exposes a writable board power cap.
	PowerCap bool
}

// Profile describes what the running machine is and what it supports.
// It is built once by Detect and must be treated as read-only afterwards.
type Profile struct {
	Vendor         Vendor
	Generation     Generation
	ModelName      string
	Cores          int
	MinMHz         int
	MaxMHz         int
	CurrentMHz     int
	ThermalMaxSafe int
	Driver         string
	Methods        []Method
	GPUs           []GPU
	// Fallback is set when CPU identification could not be read at all.
	Fallback bool
}

// Has reports whether m is among the profile's actuation methods.
func (p Profile) Has(m Method) bool {
	for _, pm := range p.Methods {
		if pm == m {
			return true
		}
	}

	return false
}

// UnifiedBounds reports whether the frequency driver is forced by pinning
// scaling_min_freq and scaling_max_freq to the same value.
func (p Profile) UnifiedBounds() bool {
	switch {
	case p.Driver == "intel_pstate", strings.HasPrefix(p.Driver, "amd-pstate"):
		return true
	case p.Driver == "":
		return p.Generation == SkylakePlus
	default:
		return false
	}
}
