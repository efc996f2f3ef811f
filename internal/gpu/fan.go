package gpu

import (
	"sync"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

type fanController struct {
	device   nvmlDevice
	count    int
	limits   FanSpeedLimits
	autoMode []bool
	mu       sync.RWMutex
	logger   logger.Logger
}

func newFanController(device nvmlDevice, log logger.Logger) (*fanController, error) {
	fc := &fanController{
		device: device,
		logger: log,
	}

	count, ret := device.GetNumFans()
	if err := check(ErrFanCountFailed, ret); err != nil {
		return nil, err
	}
	fc.count = count

	fc.autoMode = make([]bool, fc.count)
	for i := range fc.autoMode {
		fc.autoMode[i] = true
	}

	minSpeed, maxSpeed, ret := device.GetMinMaxFanSpeed()
	if err := check(ErrGetFanLimitsFailed, ret); err != nil {
		return nil, err
	}

	fc.limits = FanSpeedLimits{
		Min: FanSpeed(minSpeed),
		Max: FanSpeed(maxSpeed),
	}

	return fc, nil
}

func (fc *fanController) Count() int {
	return fc.count
}

func (fc *fanController) GetSpeed(fanIndex int) (FanSpeed, error) {
	errFactory := errors.New()
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	if fanIndex < 0 || fanIndex >= fc.count {
		return 0, errFactory.WithData(errors.ErrInvalidArgument, "fan index out of range")
	}

	speed, ret := fc.device.GetFanSpeed_v2(fanIndex)
	if err := check(ErrGetFanSpeedFailed, ret); err != nil {
		return 0, err
	}

	return FanSpeed(speed), nil
}

// SetSpeed switches the fan to manual control at speed, clamped to the
// limits the driver reports.
func (fc *fanController) SetSpeed(fanIndex int, speed FanSpeed) error {
	errFactory := errors.New()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fanIndex < 0 || fanIndex >= fc.count {
		return errFactory.WithData(errors.ErrInvalidArgument, "fan index out of range")
	}

	speed = max(fc.limits.Min, min(speed, fc.limits.Max))
	if err := check(ErrSetFanSpeed, fc.device.SetFanSpeed_v2(fanIndex, int(speed))); err != nil {
		return err
	}

	fc.autoMode[fanIndex] = false
	fc.logger.Debug().Int("fan", fanIndex).Int("speed", int(speed)).Msg("GPU fan speed set")

	return nil
}

func (fc *fanController) EnableAuto(fanIndex int) error {
	errFactory := errors.New()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fanIndex < 0 || fanIndex >= fc.count {
		return errFactory.WithData(errors.ErrInvalidArgument, "fan index out of range")
	}

	if err := check(ErrEnableAutoFan, fc.device.SetDefaultFanSpeed_v2(fanIndex)); err != nil {
		return err
	}

	fc.autoMode[fanIndex] = true

	return nil
}

func (fc *fanController) IsAutoMode(fanIndex int) bool {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	if fanIndex < 0 || fanIndex >= fc.count {
		return false
	}

	return fc.autoMode[fanIndex]
}
