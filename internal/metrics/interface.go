package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/thermalctl/internal/sensors"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/google/uuid"
)

// Collector records loop status into the snapshot trail.
type Collector interface {
	Record(ctx context.Context, status thermal.Status) error
	Close() error
}

// Repository stores trail entries, keeping only the newest ones.
type Repository interface {
	Append(entry Entry) error
	Entries() []Entry
	Close() error
}

// Entry is one line of the trail.
type Entry struct {
	Session    uuid.UUID        `json:"session"`
	Timestamp  time.Time        `json:"timestamp"`
	Mode       string           `json:"mode"`
	Band       string           `json:"band"`
	Escalation int              `json:"escalation"`
	Snapshot   sensors.Snapshot `json:"snapshot"`
}
