// Package frequency drives the CPU clock through whichever method the
// hardware profile says is available.
package frequency

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/thermalctl/internal/command"
	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/hardware"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
)

type Method = hardware.Method

const utilityTimeout = 10 * time.Second

// Result is what SetFrequency actually did. AppliedMHz is always inside the
// hardware range, even when every method failed.
type Result struct {
	AppliedMHz int
	Method     Method
}

type Actuator struct {
	hw      hardware.Profile
	profile Profile
	fs      *sysfs.FS
	runner  command.Runner
	log     logger.Logger
	mu      sync.Mutex
}

func NewActuator(hw hardware.Profile, fs *sysfs.FS, runner command.Runner, log logger.Logger) *Actuator {
	return &Actuator{
		hw:      hw,
		profile: ProfileFor(hw),
		fs:      fs,
		runner:  runner,
		log:     log,
	}
}

func (a *Actuator) Profile() Profile {
	return a.profile
}

// SetFrequency tries the profile's methods in order and stops at the first
// that succeeds. When all fail the error is ErrActuationUnavailable carrying
// the Failures of every attempt.
func (a *Actuator) SetFrequency(ctx context.Context, targetMHz int) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := a.profile.Clamp(targetMHz)

	var failures Failures
	for _, m := range a.hw.Methods {
		applied, f := a.try(ctx, m, target)
		if f == nil {
			a.log.Debug().
				Str("method", m.String()).
				Int("target_mhz", target).
				Int("applied_mhz", applied).
				Msg("Frequency applied")
			return Result{AppliedMHz: a.profile.Clamp(applied), Method: m}, nil
		}

		a.log.Debug().Str("method", m.String()).Str("reason", f.Reason.String()).Err(f.Err).Msg("Frequency method failed")
		failures = append(failures, *f)

		if ctx.Err() != nil {
			break
		}
	}

	return Result{AppliedMHz: target, Method: hardware.MethodNone},
		errors.New().WithData(ErrActuationUnavailable, failures)
}

func (a *Actuator) try(ctx context.Context, m Method, target int) (int, *MethodFailure) {
	switch m {
	case hardware.MethodNative:
		return a.setNative(ctx, target)
	case hardware.MethodRegister:
		return a.setRegister(ctx, target)
	case hardware.MethodUtility:
		return a.setUtility(ctx, target)
	case hardware.MethodManual:
		return 0, &MethodFailure{
			Method: m,
			Reason: ReasonRequiresReboot,
			Err:    errors.New().WithMessage(ErrManualRequired, ManualRemedy),
		}
	case hardware.MethodNone:
	}

	return 0, &MethodFailure{Method: m, Reason: ReasonUnsupported}
}

func failure(m Method, err error) *MethodFailure {
	reason := ReasonWriteFailed
	switch {
	case sysfs.IsPermission(err):
		reason = ReasonPermissionDenied
	case sysfs.IsTimeout(err), errors.HasCode(err, command.ErrTimeout):
		reason = ReasonTimeout
	case errors.HasCode(err, command.ErrToolMissing):
		reason = ReasonToolMissing
	case sysfs.IsNotExist(err):
		reason = ReasonUnsupported
	}

	return &MethodFailure{Method: m, Reason: reason, Err: err}
}
