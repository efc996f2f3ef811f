package errors

// Codes shared across packages. Package-specific codes live in each
// package's errors.go.
const (
	// Process
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrAlreadyRunning  ErrorCode = "already_running"
	ErrWritePIDFile    ErrorCode = "write_pid_file_failed"

	// Configuration
	ErrInvalidConfig     ErrorCode = "invalid_configuration"
	ErrBindFlags         ErrorCode = "bind_flags_failed"
	ErrReadConfig        ErrorCode = "read_config_failed"
	ErrInvalidThresholds ErrorCode = "invalid_thresholds"
	ErrInvalidLogLevel   ErrorCode = "invalid_log_level"
	ErrOpenLogFile       ErrorCode = "open_log_file_failed"

	// Kernel interfaces
	ErrResourceNotFound ErrorCode = "resource_not_found"
	ErrPermissionDenied ErrorCode = "permission_denied"
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"

	// Control loop
	ErrTickFailed  ErrorCode = "tick_failed"
	ErrRestoreFans ErrorCode = "restore_fans_failed"
	ErrRestoreFreq ErrorCode = "restore_frequency_failed"

	// Snapshot trail
	ErrInitMetrics    ErrorCode = "init_metrics_failed"
	ErrCollectMetrics ErrorCode = "collect_metrics_failed"
	ErrCloseMetrics   ErrorCode = "close_metrics_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrNotImplemented:    "Operation not implemented",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrWritePIDFile:      "Failed to write PID file",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidThresholds: "Thresholds must be strictly increasing",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrOpenLogFile:       "Failed to open log file",
	ErrResourceNotFound:  "Resource not found",
	ErrPermissionDenied:  "Permission denied",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
	ErrTickFailed:        "Control tick failed",
	ErrRestoreFans:       "Failed to restore automatic fan control",
	ErrRestoreFreq:       "Failed to restore CPU frequency",
	ErrInitMetrics:       "Failed to initialize snapshot trail",
	ErrCollectMetrics:    "Failed to record snapshot",
	ErrCloseMetrics:      "Failed to close snapshot trail",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
