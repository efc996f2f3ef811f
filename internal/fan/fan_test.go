package fan_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/fan"
	"codeberg.org/mutker/thermalctl/internal/gpu"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFans struct {
	speeds []gpu.FanSpeed
	auto   []bool
	sets   int
}

func (f *fakeFans) Count() int { return len(f.speeds) }

func (f *fakeFans) GetSpeed(i int) (gpu.FanSpeed, error) { return f.speeds[i], nil }


func (f *fakeFans) SetSpeed(i int, s gpu.FanSpeed) error {
	f.sets++
	f.speeds[i] = s
	f.auto[i] = false
	return nil
}

func (f *fakeFans) EnableAuto(i int) error {
	f.auto[i] = true
	return nil
}

func (f *fakeFans) IsAutoMode(i int) bool { return f.auto[i] }

type fakeDevice struct {
	index int
	fans  *fakeFans
}

func (d *fakeDevice) Index() int                            { return d.index }
func (d *fakeDevice) Name() string                          { return "GeForce" }
func (d *fakeDevice) Temperature() (gpu.Temperature, error) { return 50, nil }
func (d *fakeDevice) PowerUsage() (gpu.Watts, error)        { return 100, nil }
func (d *fakeDevice) Fans() gpu.FanController               { return d.fans }

type fakeManager struct {
	devices []gpu.Device
}

func (m *fakeManager) Devices() []gpu.Device { return m.devices }
func (m *fakeManager) Shutdown() error       { return nil }

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	return strings.TrimSpace(string(b))
}

func setup(t *testing.T) (string, *fan.Actuator, *fakeFans) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "sys/class/hwmon/hwmon2/name", "nct6775\n")
	writeFile(t, root, "sys/class/hwmon/hwmon2/pwm1", "100\n")
	writeFile(t, root, "sys/class/hwmon/hwmon2/pwm1_enable", "2\n")
	writeFile(t, root, "sys/class/hwmon/hwmon2/pwm2", "100\n")
	writeFile(t, root, "sys/class/hwmon/hwmon2/pwm1_mode", "1\n")
	writeFile(t, root, "sys/class/hwmon/hwmon0/name", "acpitz\n")

	gpuFans := &fakeFans{speeds: []gpu.FanSpeed{40}, auto: []bool{true}}
	manager := &fakeManager{devices: []gpu.Device{&fakeDevice{index: 0, fans: gpuFans}}}

	act := fan.NewActuator(sysfs.New(root, time.Second), manager, logger.Nop())
	return root, act, gpuFans
}

func TestDiscover(t *testing.T) {
	_, act, _ := setup(t)

	fans := act.Discover(context.Background())
	require.Len(t, fans, 3)

	assert.Equal(t, "nct6775/pwm1", fans[0].ID)
	assert.Equal(t, "sys/class/hwmon/hwmon2/pwm1_enable", fans[0].Enable)
	assert.Equal(t, "nct6775/pwm2", fans[1].ID)
	assert.Empty(t, fans[1].Enable)
	assert.Equal(t, "nvml0/fan0", fans[2].ID)
	assert.Equal(t, fan.SourceNVML, fans[2].Source)
}

func TestSetDuty(t *testing.T) {
	root, act, gpuFans := setup(t)
	act.Discover(context.Background())
	ctx := context.Background()

	require.NoError(t, act.SetDuty(ctx, "nct6775/pwm1", 50))
	assert.Equal(t, "1", readFile(t, root, "sys/class/hwmon/hwmon2/pwm1_enable"))
	assert.Equal(t, "127", readFile(t, root, "sys/class/hwmon/hwmon2/pwm1"))

	require.NoError(t, act.SetDuty(ctx, "nct6775/pwm2", 140))
	assert.Equal(t, "255", readFile(t, root, "sys/class/hwmon/hwmon2/pwm2"))

	require.NoError(t, act.SetDuty(ctx, "nvml0/fan0", -5))
	assert.Equal(t, gpu.FanSpeed(0), gpuFans.speeds[0])

	err := act.SetDuty(ctx, "it87/pwm9", 50)
	assert.True(t, errors.HasCode(err, fan.ErrFanNotFound))
}

func TestSetDutyManualModeFailureStillWritesDuty(t *testing.T) {
	root, act, _ := setup(t)
	act.Discover(context.Background())

	// A directory in place of the enable file makes the mode write fail.
	enable := filepath.Join(root, "sys/class/hwmon/hwmon2/pwm1_enable")
	require.NoError(t, os.Remove(enable))
	require.NoError(t, os.Mkdir(enable, 0o755))

	err := act.SetDuty(context.Background(), "nct6775/pwm1", 100)
	assert.True(t, errors.HasCode(err, fan.ErrManualMode))
	assert.Equal(t, "255", readFile(t, root, "sys/class/hwmon/hwmon2/pwm1"))
}

func TestSetAllSkipsUnchanged(t *testing.T) {
	root, act, gpuFans := setup(t)
	act.Discover(context.Background())
	ctx := context.Background()

	require.NoError(t, act.SetAll(ctx, 75))
	assert.Equal(t, "191", readFile(t, root, "sys/class/hwmon/hwmon2/pwm1"))
	assert.Equal(t, "191", readFile(t, root, "sys/class/hwmon/hwmon2/pwm2"))
	assert.Equal(t, 1, gpuFans.sets)

	writeFile(t, root, "sys/class/hwmon/hwmon2/pwm2", "0\n")
	require.NoError(t, act.SetAll(ctx, 75))
	assert.Equal(t, "0", readFile(t, root, "sys/class/hwmon/hwmon2/pwm2"))
	assert.Equal(t, 1, gpuFans.sets)

	require.NoError(t, act.SetAll(ctx, 30))
	assert.Equal(t, "76", readFile(t, root, "sys/class/hwmon/hwmon2/pwm2"))
	assert.Equal(t, 2, gpuFans.sets)
}

func TestRestoreAuto(t *testing.T) {
	root, act, gpuFans := setup(t)
	act.Discover(context.Background())
	ctx := context.Background()

	require.NoError(t, act.SetAll(ctx, 100))
	assert.False(t, gpuFans.auto[0])

	require.NoError(t, act.RestoreAuto(ctx))
	assert.Equal(t, "2", readFile(t, root, "sys/class/hwmon/hwmon2/pwm1_enable"))
	assert.True(t, gpuFans.auto[0])

	err := act.SetAuto(ctx, "nct6775/pwm2")
	assert.True(t, errors.HasCode(err, fan.ErrAutoUnsupported))
}
