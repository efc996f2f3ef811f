package telemetry

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig     = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidListenAddr = errors.ErrorCode("telemetry_invalid_listen_address")

	// Collection Errors
	ErrMetricsCollection = errors.ErrorCode("telemetry_metrics_collection_failed")

	// Server Errors
	ErrServerStart = errors.ErrorCode("telemetry_server_start_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("telemetry_operation_timeout")
	ErrServiceShutdown  = errors.ErrorCode("telemetry_service_shutdown_failed")
)
