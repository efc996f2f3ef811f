package telemetry

import (
	"net"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

const (
	namespace              = "thermalctl"
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

type Config struct {
	// Listen is the host:port for /metrics and /status. Empty disables
	// the endpoint.
	Listen          string
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func (c Config) Enabled() bool {
	return c.Listen != ""
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled() {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errFactory.Wrap(ErrInvalidListenAddr, err)
	}

	return nil
}
