// Package telemetry exposes the loop status over HTTP for Prometheus.
package telemetry

import (
	"context"
	"net"
	"net/http"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/safego"
	"codeberg.org/mutker/thermalctl/internal/thermal"
)

type service struct {
	exporter *Exporter
	server   *http.Server
	cfg      Config
	log      logger.Logger
}

// No-op implementation
type noopCollector struct{}

// NewService binds cfg.Listen and serves the exporter in the background.
// With an empty listen address it returns a no-op collector.
func NewService(cfg Config, source StatusSource, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled() {
		log.Debug().Msg("Telemetry endpoint disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, errFactory.WithData(ErrServerStart, struct {
			Listen string
			Error  string
		}{
			Listen: cfg.Listen,
			Error:  err.Error(),
		})
	}

	exporter := NewExporter(source)
	s := &service{
		exporter: exporter,
		server: &http.Server{
			Handler:           exporter.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		cfg: cfg,
		log: log,
	}

	safego.Go(func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Telemetry server stopped")
		}
	})

	log.Info().Str("listen", ln.Addr().String()).Msg("Telemetry endpoint started")

	return s, nil
}

func (s *service) Record(ctx context.Context, status thermal.Status) error {
	if err := s.exporter.Record(ctx, status); err != nil {
		return errors.New().Wrap(ErrMetricsCollection, err)
	}

	return nil
}

func (s *service) Close() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	s.log.Debug().Msg("Telemetry endpoint stopped")

	return nil
}

func (*noopCollector) Record(context.Context, thermal.Status) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}
