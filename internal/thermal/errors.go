package thermal

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	ErrInvalidThresholds = errors.ErrInvalidThresholds
	ErrModeRejected      = errors.ErrorCode("thermal_mode_rejected")
	ErrStillUnsafe       = errors.ErrorCode("thermal_still_unsafe")
	ErrTickFailed        = errors.ErrTickFailed
)
