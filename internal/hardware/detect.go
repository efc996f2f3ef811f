package hardware

import (
	"bufio"
	"context"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/thermalctl/internal/command"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	cpufreqDir     = "sys/devices/system/cpu/cpu0/cpufreq"
	msrDevice      = "dev/cpu/0/msr"
	cpuinfoPath    = "proc/cpuinfo"
	drmCardPattern = "sys/class/drm/card*/device/vendor"

	modprobeTimeout = 5 * time.Second
	utilityTool     = "cpupower"
)

var drmCardName = regexp.MustCompile(`^card\d+$`)

// identity is the raw CPU identification read from the OS.
type identity struct {
	modelName  string
	vendorID   string
	mhz        float64
	processors int
}

// Detector probes the machine once at startup.
type Detector struct {
	fs       *sysfs.FS
	runner   command.Runner
	log      logger.Logger
	cpuInfo  func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuCount func(ctx context.Context, logical bool) (int, error)
}

type Option func(*Detector)

// WithCPUInfo replaces the gopsutil CPU identification source.
func WithCPUInfo(fn func(ctx context.Context) ([]cpu.InfoStat, error)) Option {
	return func(d *Detector) {
		d.cpuInfo = fn
	}
}

// WithCPUCount replaces the gopsutil logical core counter.
func WithCPUCount(fn func(ctx context.Context, logical bool) (int, error)) Option {
	return func(d *Detector) {
		d.cpuCount = fn
	}
}

func NewDetector(fs *sysfs.FS, runner command.Runner, log logger.Logger, opts ...Option) *Detector {
	d := &Detector{
		fs:     fs,
		runner: runner,
		log:    log,
	}

	// gopsutil always reads the live /proc, so a relocated root means tests
	// or a chroot: read the files below that root instead.
	if fs.Root() == "/" {
		d.cpuInfo = cpu.InfoWithContext
		d.cpuCount = cpu.CountsWithContext
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect builds the hardware profile. It never fails: anything unreadable
// degrades to conservative values.
func (d *Detector) Detect(ctx context.Context) Profile {
	id, ok := d.identify(ctx)

	p := Profile{
		ModelName: id.modelName,
		Cores:     id.processors,
	}
	p.Vendor, p.Generation = Classify(id.modelName, id.vendorID)

	if ok {
		p.ThermalMaxSafe = ThermalMaxSafe(p.Generation)
	} else {
		p.Fallback = true
		p.ThermalMaxSafe = fallbackThermalMax
	}

	if p.Cores <= 0 {
		p.Cores = 1
	}

	p.Driver, _ = d.fs.ReadString(ctx, path.Join(cpufreqDir, "scaling_driver"))
	p.MinMHz, p.MaxMHz, p.CurrentMHz = d.frequencyRange(ctx, id.mhz)
	p.Methods = d.methods(ctx, p.Generation)
	p.GPUs = d.gpus(ctx)

	d.log.Info().
		Str("vendor", p.Vendor.String()).
		Str("generation", p.Generation.String()).
		Str("model", p.ModelName).
		Int("cores", p.Cores).
		Int("min_mhz", p.MinMHz).
		Int("max_mhz", p.MaxMHz).
		Int("thermal_max_safe", p.ThermalMaxSafe).
		Str("driver", p.Driver).
		Interface("methods", methodNames(p.Methods)).
		Int("gpus", len(p.GPUs)).
		Bool("fallback", p.Fallback).
		Msg("Hardware detected")

	return p
}

func (d *Detector) identify(ctx context.Context) (identity, bool) {
	if d.cpuInfo != nil {
		infos, err := d.cpuInfo(ctx)
		if err == nil && len(infos) > 0 {
			id := identity{
				modelName:  strings.TrimSpace(infos[0].ModelName),
				vendorID:   infos[0].VendorID,
				mhz:        infos[0].Mhz,
				processors: len(infos),
			}
			if d.cpuCount != nil {
				if n, err := d.cpuCount(ctx, true); err == nil && n > 0 {
					id.processors = n
				}
			}
			return id, id.modelName != "" || id.vendorID != ""
		}
		d.log.Debug().Err(err).Msg("gopsutil CPU info unavailable, parsing cpuinfo")
	}

	text, err := d.fs.ReadString(ctx, cpuinfoPath)
	if err != nil {
		d.log.Warn().Err(err).Msg("CPU identification unreadable, using fallback profile")
		return identity{}, false
	}

	id := parseCPUInfo(text)

	return id, id.modelName != "" || id.vendorID != ""
}

func parseCPUInfo(text string) identity {
	var id identity

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "processor":
			id.processors++
		case "model name":
			if id.modelName == "" {
				id.modelName = value
			}
		case "vendor_id":
			if id.vendorID == "" {
				id.vendorID = value
			}
		case "cpu MHz":
			if id.mhz == 0 {
				id.mhz, _ = strconv.ParseFloat(value, 64)
			}
		}
	}

	return id
}

// frequencyRange returns min, max and current MHz. Without cpufreq the range
// is a crude estimate from the current clock: floor current/3, ceiling
// max(current, 2000).
func (d *Detector) frequencyRange(ctx context.Context, reportedMHz float64) (int, int, int) {
	current := int(reportedMHz)
	if khz, err := d.fs.ReadInt(ctx, path.Join(cpufreqDir, "scaling_cur_freq")); err == nil && khz > 0 {
		current = int(khz / 1000)
	}

	minKHz, errMin := d.fs.ReadInt(ctx, path.Join(cpufreqDir, "cpuinfo_min_freq"))
	maxKHz, errMax := d.fs.ReadInt(ctx, path.Join(cpufreqDir, "cpuinfo_max_freq"))
	if errMin == nil && errMax == nil && minKHz > 0 && maxKHz >= minKHz {
		return int(minKHz / 1000), int(maxKHz / 1000), current
	}

	if current > 0 {
		return max(current/3, 1), max(current, estimatedCeiling), current
	}

	return fallbackMinMHz, fallbackMaxMHz, current
}

func (d *Detector) methods(ctx context.Context, gen Generation) []Method {
	var methods []Method

	if d.fs.Exists(ctx, cpufreqDir) {
		methods = append(methods, MethodNative)
	}

	if gen != GenerationUnknown && RegisterTable(gen) != nil {
		if _, err := d.runner.Run(ctx, modprobeTimeout, "modprobe", "msr"); err != nil {
			d.log.Debug().Err(err).Msg("modprobe msr failed")
		}
		if d.fs.Exists(ctx, msrDevice) {
			methods = append(methods, MethodRegister)
		}
	}

	if _, err := d.runner.LookPath(utilityTool); err == nil {
		methods = append(methods, MethodUtility)
	}

	return append(methods, MethodManual)
}

func (d *Detector) gpus(ctx context.Context) []GPU {
	matches, err := d.fs.Glob(ctx, drmCardPattern)
	if err != nil {
		d.log.Debug().Err(err).Msg("DRM class tree unavailable")
		return nil
	}

	var gpus []GPU
	for _, vendorPath := range matches {
		deviceDir := path.Dir(vendorPath)
		card := path.Base(path.Dir(deviceDir))
		if !drmCardName.MatchString(card) {
			continue
		}

		id, err := d.fs.ReadString(ctx, vendorPath)
		if err != nil {
			continue
		}

		caps, _ := d.fs.Glob(ctx, path.Join(deviceDir, "hwmon/hwmon*/power1_cap"))
		gpus = append(gpus, GPU{
			Card:         card,
			Vendor:       gpuVendor(id),
			PowerProfile: d.fs.Exists(ctx, path.Join(deviceDir, "power_dpm_force_performance_level")),
			PowerCap:     len(caps) > 0,
		})
	}

	return gpus
}

func gpuVendor(pciID string) GPUVendor {
	switch strings.ToLower(pciID) {
	case "0x10de":
		return GPUVendorNVIDIA
	case "0x1002":
		return GPUVendorAMD
	case "0x8086":
		return GPUVendorIntel
	default:
		return GPUVendorUnknown
	}
}

func methodNames(methods []Method) []string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}

	return names
}
