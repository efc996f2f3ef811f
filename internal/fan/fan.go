// Package fan drives PWM fan outputs exposed by hwmon and NVIDIA GPU fans.
package fan

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"sync"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/gpu"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
)

const (
	pwmPattern = "sys/class/hwmon/hwmon*/pwm*"

	// pwmN_enable values.
	enableManual = "1"
	enableAuto   = "2"

	pwmMax = 255
)

var pwmName = regexp.MustCompile(`^pwm\d+$`)

type Source int

const (
	SourceHwmon Source = iota
	SourceNVML
)

func (s Source) String() string {
	switch s {
	case SourceHwmon:
		return "hwmon"
	case SourceNVML:
		return "nvml"
	}

	return "unknown"
}

// Fan is one controllable fan output, discovered once at startup.
type Fan struct {
	ID     string
	Source Source
	// Root-relative pwm and pwm_enable files; Enable is empty when the
	// output has no mode select.
	PWM    string
	Enable string

	ctrl  gpu.FanController
	index int
}

type Actuator struct {
	fs      *sysfs.FS
	manager gpu.Manager
	log     logger.Logger

	mu   sync.Mutex
	fans []Fan
	byID map[string]int
	// duty is the last percentage written per fan; absent means automatic.
	duty map[string]int
}

// NewActuator builds an actuator; manager may be nil when NVML is absent.
func NewActuator(fs *sysfs.FS, manager gpu.Manager, log logger.Logger) *Actuator {
	return &Actuator{
		fs:      fs,
		manager: manager,
		log:     log,
		byID:    make(map[string]int),
		duty:    make(map[string]int),
	}
}

// Discover enumerates controllable fans and replaces the known set.
func (a *Actuator) Discover(ctx context.Context) []Fan {
	var fans []Fan

	matches, err := a.fs.Glob(ctx, pwmPattern)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to enumerate PWM outputs")
	}
	for _, m := range matches {
		name := path.Base(m)
		if !pwmName.MatchString(name) {
			continue
		}

		dir := path.Dir(m)
		chip, err := a.fs.ReadString(ctx, path.Join(dir, "name"))
		if err != nil || chip == "" {
			chip = path.Base(dir)
		}

		f := Fan{ID: chip + "/" + name, Source: SourceHwmon, PWM: m}
		if enable := m + "_enable"; a.fs.Exists(ctx, enable) {
			f.Enable = enable
		}
		fans = append(fans, f)
	}

	if a.manager != nil {
		for _, dev := range a.manager.Devices() {
			ctrl := dev.Fans()
			for i := 0; i < ctrl.Count(); i++ {
				fans = append(fans, Fan{
					ID:     fmt.Sprintf("nvml%d/fan%d", dev.Index(), i),
					Source: SourceNVML,
					ctrl:   ctrl,
					index:  i,
				})
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.fans = fans
	a.byID = make(map[string]int, len(fans))
	for i, f := range fans {
		a.byID[f.ID] = i
	}
	a.duty = make(map[string]int)

	a.log.Info().Int("count", len(fans)).Msg("Fans discovered")

	return fans
}

func (a *Actuator) Fans() []Fan {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Fan(nil), a.fans...)
}

// SetDuty sets fanID to pct percent, clamped to 0..100. A failed switch to
// manual mode is returned as ErrManualMode but does not stop the duty write.
func (a *Actuator) SetDuty(ctx context.Context, fanID string, pct int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.lookup(fanID)
	if err != nil {
		return err
	}

	return a.setDuty(ctx, f, clampPercent(pct))
}

// SetAll applies pct to every fan, skipping fans already at that duty.
func (a *Actuator) SetAll(ctx context.Context, pct int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pct = clampPercent(pct)

	var errs []error
	for _, f := range a.fans {
		if cur, ok := a.duty[f.ID]; ok && cur == pct {
			continue
		}
		if err := a.setDuty(ctx, f, pct); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SetAuto hands fanID back to its firmware or driver policy.
func (a *Actuator) SetAuto(ctx context.Context, fanID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.lookup(fanID)
	if err != nil {
		return err
	}

	return a.setAuto(ctx, f)
}

// RestoreAuto returns every fan to automatic control. Meant for shutdown.
func (a *Actuator) RestoreAuto(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, f := range a.fans {
		if f.Source == SourceHwmon && f.Enable == "" {
			delete(a.duty, f.ID)
			continue
		}
		if err := a.setAuto(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return errors.New().Wrap(ErrRestoreAuto, err)
	}

	return nil
}

func (a *Actuator) lookup(fanID string) (Fan, error) {
	i, ok := a.byID[fanID]
	if !ok {
		return Fan{}, errors.New().WithData(ErrFanNotFound, fanID)
	}

	return a.fans[i], nil
}

func (a *Actuator) setDuty(ctx context.Context, f Fan, pct int) error {
	errFactory := errors.New()

	if f.Source == SourceNVML {
		if err := f.ctrl.SetSpeed(f.index, gpu.FanSpeed(pct)); err != nil {
			return errFactory.Wrap(ErrSetDuty, err)
		}
		a.duty[f.ID] = pct
		return nil
	}

	var modeErr error
	if f.Enable != "" {
		if err := a.fs.WriteString(ctx, f.Enable, enableManual); err != nil {
			a.log.Warn().Str("fan", f.ID).Err(err).Msg("Failed to switch fan to manual mode")
			modeErr = errFactory.Wrap(ErrManualMode, err)
		}
	}

	if err := a.fs.WriteString(ctx, f.PWM, strconv.Itoa(pct*pwmMax/100)); err != nil {
		return errFactory.Wrap(ErrSetDuty, err)
	}
	a.duty[f.ID] = pct

	a.log.Debug().Str("fan", f.ID).Int("duty", pct).Msg("Fan duty set")

	return modeErr
}

func (a *Actuator) setAuto(ctx context.Context, f Fan) error {
	delete(a.duty, f.ID)

	switch f.Source {
	case SourceNVML:
		return f.ctrl.EnableAuto(f.index)
	case SourceHwmon:
		if f.Enable == "" {
			return errors.New().WithData(ErrAutoUnsupported, f.ID)
		}
		return a.fs.WriteString(ctx, f.Enable, enableAuto)
	}

	return nil
}

func clampPercent(pct int) int {
	return min(max(pct, 0), 100)
}
