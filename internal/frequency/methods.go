package frequency

import (
	"context"
	"encoding/binary"
	"fmt"
	"path"
	"strconv"
	"strings"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/hardware"
)

const (
	cpufreqPattern = "sys/devices/system/cpu/cpu[0-9]*/cpufreq"
	msrPattern     = "dev/cpu/[0-9]*/msr"

	perfCtlRegister = 0x199
	// Largest distance between the target and a register table entry.
	registerTolerance = 200

	utilityTool = "cpupower"
)

// ManualRemedy is what an operator has to do when no method works at runtime.
const ManualRemedy = `add "intel_pstate=disable processor.max_cstate=1" to ` +
	`GRUB_CMDLINE_LINUX_DEFAULT in /etc/default/grub, run update-grub and reboot`

func (a *Actuator) cores(ctx context.Context) ([]string, error) {
	dirs, err := a.fs.Glob(ctx, cpufreqPattern)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, errors.New().WithMessage(errors.ErrResourceNotFound, "no cpufreq policies")
	}

	return dirs, nil
}

// setNative writes through the kernel cpufreq interface. Pinning drivers get
// both bounds set to the target, in an order that never leaves min > max.
// Other drivers need the userspace governor.
func (a *Actuator) setNative(ctx context.Context, target int) (int, *MethodFailure) {
	dirs, err := a.cores(ctx)
	if err != nil {
		return 0, &MethodFailure{Method: hardware.MethodNative, Reason: ReasonUnsupported, Err: err}
	}

	khz := strconv.Itoa(target * 1000)

	if a.hw.UnifiedBounds() {
		for _, dir := range dirs {
			maxFile, minFile := path.Join(dir, "scaling_max_freq"), path.Join(dir, "scaling_min_freq")

			order := []string{minFile, maxFile}
			if cur, err := a.fs.ReadInt(ctx, maxFile); err == nil && int64(target)*1000 > cur {
				order = []string{maxFile, minFile}
			}

			for _, f := range order {
				if err := a.fs.WriteString(ctx, f, khz); err != nil {
					return 0, failure(hardware.MethodNative, err)
				}
			}
		}

		return target, nil
	}

	governors, err := a.fs.ReadString(ctx, path.Join(dirs[0], "scaling_available_governors"))
	if err != nil {
		return 0, failure(hardware.MethodNative, err)
	}
	if !containsField(governors, "userspace") {
		return 0, &MethodFailure{
			Method: hardware.MethodNative,
			Reason: ReasonUnsupported,
			Err:    errors.New().WithMessage(errors.ErrNotImplemented, "userspace governor not available"),
		}
	}

	for _, dir := range dirs {
		if err := a.fs.WriteString(ctx, path.Join(dir, "scaling_governor"), "userspace"); err != nil {
			return 0, failure(hardware.MethodNative, err)
		}
		if err := a.fs.WriteString(ctx, path.Join(dir, "scaling_setspeed"), khz); err != nil {
			return 0, failure(hardware.MethodNative, err)
		}
	}

	return target, nil
}

// setRegister programs the performance control register on every core with
// the nearest table entry.
func (a *Actuator) setRegister(ctx context.Context, target int) (int, *MethodFailure) {
	entry, ok := nearestEntry(hardware.RegisterTable(a.hw.Generation), a.profile.MinMHz, a.profile.MaxMHz, target)
	if !ok {
		return 0, &MethodFailure{Method: hardware.MethodRegister, Reason: ReasonNoRegisterTable}
	}
	if abs(entry.MHz-target) > registerTolerance {
		return 0, &MethodFailure{
			Method: hardware.MethodRegister,
			Reason: ReasonOutOfTolerance,
			Err:    errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("nearest %d MHz", entry.MHz)),
		}
	}

	nodes, err := a.fs.Glob(ctx, msrPattern)
	if err != nil || len(nodes) == 0 {
		return 0, &MethodFailure{Method: hardware.MethodRegister, Reason: ReasonUnsupported, Err: err}
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, entry.Value)
	for _, node := range nodes {
		if err := a.fs.WriteAt(ctx, node, buf, perfCtlRegister); err != nil {
			return 0, failure(hardware.MethodRegister, err)
		}
	}

	return entry.MHz, nil
}

func (a *Actuator) setUtility(ctx context.Context, target int) (int, *MethodFailure) {
	_, err := a.runner.Run(ctx, utilityTimeout, utilityTool, "frequency-set", "-f", fmt.Sprintf("%dMHz", target))
	if err != nil {
		return 0, failure(hardware.MethodUtility, err)
	}

	return target, nil
}

func nearestEntry(table []hardware.RegisterEntry, lo, hi, target int) (hardware.RegisterEntry, bool) {
	var (
		best  hardware.RegisterEntry
		found bool
	)
	for _, e := range table {
		if e.MHz < lo || e.MHz > hi {
			continue
		}
		if !found || abs(e.MHz-target) < abs(best.MHz-target) {
			best, found = e, true
		}
	}

	return best, found
}

func containsField(s, field string) bool {
	for _, f := range strings.Fields(s) {
		if f == field {
			return true
		}
	}

	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
