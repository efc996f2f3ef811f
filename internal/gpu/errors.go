package gpu

import (
	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Library
	ErrNotInitialized    = errors.ErrorCode("gpu_not_initialized")
	ErrInitFailed        = errors.ErrorCode("gpu_init_failed")
	ErrShutdownFailed    = errors.ErrorCode("gpu_shutdown_failed")
	ErrDeviceCountFailed = errors.ErrorCode("gpu_device_count_failed")
	ErrDeviceNotFound    = errors.ErrorCode("gpu_device_not_found")

	// Readings
	ErrTemperatureReadFailed = errors.ErrorCode("gpu_temperature_read_failed")
	ErrPowerReadFailed       = errors.ErrorCode("gpu_power_read_failed")

	// Fans
	ErrFanCountFailed     = errors.ErrorCode("gpu_fan_count_failed")
	ErrGetFanSpeedFailed  = errors.ErrorCode("gpu_fan_speed_failed")
	ErrGetFanLimitsFailed = errors.ErrorCode("gpu_fan_limits_failed")
	ErrSetFanSpeed        = errors.ErrorCode("gpu_set_fan_speed_failed")
	ErrEnableAutoFan      = errors.ErrorCode("gpu_enable_auto_fan_failed")
)

// returnError carries the raw NVML status behind a coded error.
type returnError struct {
	ret nvml.Return
}

func (e *returnError) Error() string {
	return nvml.ErrorString(e.ret)
}

// check turns a non-success NVML status into an error coded with code.
func check(code errors.ErrorCode, ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}

	return errors.New().Wrap(code, &returnError{ret: ret})
}

// IsUnsupported reports whether the driver rejected a call because the
// board lacks the feature, as many laptop and datacenter GPUs do for fans.
func IsUnsupported(err error) bool {
	var re *returnError
	if !errors.As(err, &re) {
		return false
	}

	return re.ret == nvml.ERROR_NOT_SUPPORTED
}
