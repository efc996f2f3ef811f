package telemetry

import (
	"context"

	"codeberg.org/mutker/thermalctl/internal/sensors"
	"codeberg.org/mutker/thermalctl/internal/thermal"
)

// Collector publishes loop status as Prometheus gauges.
type Collector interface {
	Record(ctx context.Context, status thermal.Status) error
	Close() error
}

// StatusSource answers /status and /history requests.
type StatusSource interface {
	GetStatus() thermal.Status
	History() []sensors.Snapshot
}
