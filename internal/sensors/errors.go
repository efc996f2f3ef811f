package sensors

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	ErrBackendUnavailable = errors.ErrorCode("sensors_backend_unavailable")
	ErrBackendFailed      = errors.ErrorCode("sensors_backend_failed")
	ErrParse              = errors.ErrorCode("sensors_parse_failed")
)
