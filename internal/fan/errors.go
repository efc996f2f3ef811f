package fan

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	ErrFanNotFound     = errors.ErrorCode("fan_not_found")
	ErrSetDuty         = errors.ErrorCode("fan_set_duty_failed")
	ErrManualMode      = errors.ErrorCode("fan_manual_mode_failed")
	ErrRestoreAuto     = errors.ErrorCode("fan_restore_auto_failed")
	ErrAutoUnsupported = errors.ErrorCode("fan_auto_unsupported")
)
