package metrics

import (
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm       = 0o755
	defaultFilePerm      = 0o644
	defaultTrailPath     = "/var/lib/thermalctl/trail.json"
	defaultMaxEntries    = 1000
	defaultFlushInterval = 30 * time.Second
	defaultWriteTimeout  = 5 * time.Second
)

type Config struct {
	Path          string
	MaxEntries    int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
	Enabled       bool
}

func DefaultConfig() Config {
	return Config{
		Path:          defaultTrailPath,
		MaxEntries:    defaultMaxEntries,
		FlushInterval: defaultFlushInterval,
		WriteTimeout:  defaultWriteTimeout,
		Enabled:       false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the trail settings if it is enabled
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errFactory.New(ErrInvalidPath)
	}
	if c.MaxEntries <= 0 || c.FlushInterval <= 0 {
		return errFactory.WithData(ErrInvalidConfig, c)
	}

	return nil
}
