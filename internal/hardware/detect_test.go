package hardware_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/command"
	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/hardware"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	tools map[string]bool
	calls []string
}

func (r *fakeRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	if !r.tools[name] {
		return nil, errors.New().New(command.ErrToolMissing)
	}
	return nil, nil
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New().New(command.ErrToolMissing)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

const q9550CPUInfo = `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Core(TM)2 Quad CPU    Q9550  @ 2.83GHz
cpu MHz		: 2000.000

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Core(TM)2 Quad CPU    Q9550  @ 2.83GHz
cpu MHz		: 2000.000
`

func newDetector(root string, runner command.Runner, opts ...hardware.Option) *hardware.Detector {
	return hardware.NewDetector(sysfs.New(root, time.Second), runner, logger.Nop(), opts...)
}

func TestDetectCore2WithAllMethods(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/cpuinfo", q9550CPUInfo)
	writeFile(t, root, "sys/devices/system/cpu/cpu0/cpufreq/cpuinfo_min_freq", "2000000\n")
	writeFile(t, root, "sys/devices/system/cpu/cpu0/cpufreq/cpuinfo_max_freq", "2833000\n")
	writeFile(t, root, "sys/devices/system/cpu/cpu0/cpufreq/scaling_driver", "acpi-cpufreq\n")
	writeFile(t, root, "dev/cpu/0/msr", "")
	runner := &fakeRunner{tools: map[string]bool{"modprobe": true, "cpupower": true}}

	p := newDetector(root, runner).Detect(context.Background())

	assert.Equal(t, hardware.VendorIntel, p.Vendor)
	assert.Equal(t, hardware.Core2, p.Generation)
	assert.Equal(t, 2, p.Cores)
	assert.Equal(t, 2000, p.MinMHz)
	assert.Equal(t, 2833, p.MaxMHz)
	assert.Equal(t, 85, p.ThermalMaxSafe)
	assert.Equal(t, "acpi-cpufreq", p.Driver)
	assert.False(t, p.UnifiedBounds())
	assert.Equal(t, []hardware.Method{
		hardware.MethodNative, hardware.MethodRegister, hardware.MethodUtility, hardware.MethodManual,
	}, p.Methods)
	assert.Contains(t, runner.calls, "modprobe msr")
	assert.False(t, p.Fallback)
}

func TestDetectEstimatesRangeWithoutCpufreq(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/cpuinfo", q9550CPUInfo)

	p := newDetector(root, &fakeRunner{}).Detect(context.Background())

	assert.Equal(t, 666, p.MinMHz)
	assert.Equal(t, 2000, p.MaxMHz)
	assert.Equal(t, []hardware.Method{hardware.MethodManual}, p.Methods)
}

func TestDetectNeverOffersRegisterForUnknownGeneration(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/cpuinfo", "processor : 0\nvendor_id : GenuineIntel\nmodel name : Intel(R) Xeon(R) CPU E5-2670\n")
	writeFile(t, root, "dev/cpu/0/msr", "")
	runner := &fakeRunner{tools: map[string]bool{"modprobe": true}}

	p := newDetector(root, runner).Detect(context.Background())

	assert.Equal(t, hardware.GenerationUnknown, p.Generation)
	assert.False(t, p.Has(hardware.MethodRegister))
	assert.Empty(t, runner.calls)
	assert.Equal(t, 85, p.ThermalMaxSafe)
}

func TestDetectUnreadableFallsBackConservatively(t *testing.T) {
	p := newDetector(t.TempDir(), &fakeRunner{}).Detect(context.Background())

	assert.True(t, p.Fallback)
	assert.Equal(t, hardware.VendorUnknown, p.Vendor)
	assert.Equal(t, hardware.GenerationUnknown, p.Generation)
	assert.Equal(t, 70, p.ThermalMaxSafe)
	assert.Equal(t, 800, p.MinMHz)
	assert.Equal(t, 2000, p.MaxMHz)
	assert.Equal(t, 1, p.Cores)
	assert.Equal(t, []hardware.Method{hardware.MethodManual}, p.Methods)
}

func TestDetectUsesCPUInfoSource(t *testing.T) {
	root := t.TempDir()
	info := func(context.Context) ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{{ModelName: "AMD Ryzen 7 5800X 8-Core Processor", VendorID: "AuthenticAMD", Mhz: 3800}}, nil
	}
	count := func(context.Context, bool) (int, error) { return 16, nil }

	p := newDetector(root, &fakeRunner{}, hardware.WithCPUInfo(info), hardware.WithCPUCount(count)).
		Detect(context.Background())

	assert.Equal(t, hardware.Zen, p.Generation)
	assert.Equal(t, 16, p.Cores)
	assert.Equal(t, 95, p.ThermalMaxSafe)
	assert.Equal(t, 1266, p.MinMHz)
	assert.Equal(t, 3800, p.MaxMHz)
}

func TestDetectGPUs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/cpuinfo", q9550CPUInfo)
	writeFile(t, root, "sys/class/drm/card0/device/vendor", "0x1002\n")
	writeFile(t, root, "sys/class/drm/card0/device/power_dpm_force_performance_level", "auto\n")
	writeFile(t, root, "sys/class/drm/card0/device/hwmon/hwmon3/power1_cap", "150000000\n")
	writeFile(t, root, "sys/class/drm/card1/device/vendor", "0x10de\n")
	writeFile(t, root, "sys/class/drm/card0-DP-1/device/vendor", "0x1002\n")

	p := newDetector(root, &fakeRunner{}).Detect(context.Background())

	require.Len(t, p.GPUs, 2)
	assert.Equal(t, hardware.GPU{Card: "card0", Vendor: hardware.GPUVendorAMD, PowerProfile: true, PowerCap: true}, p.GPUs[0])
	assert.Equal(t, hardware.GPU{Card: "card1", Vendor: hardware.GPUVendorNVIDIA}, p.GPUs[1])
}

func TestReportListsCompatibilityIssues(t *testing.T) {
	p := newDetector(t.TempDir(), &fakeRunner{}).Detect(context.Background())

	report := hardware.Report(p)
	assert.Contains(t, report, "Thermal max:    70°C")
	assert.Contains(t, report, "no runtime frequency control available")
	assert.NotEmpty(t, hardware.Compatibility(p))
}
