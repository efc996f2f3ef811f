// Package metrics keeps the bounded JSON trail of recent snapshots.
package metrics

import (
	"context"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/google/uuid"
)

type service struct {
	repo    Repository
	cfg     Config
	session uuid.UUID
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the trail is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Snapshot trail disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create trail repository")
		return nil, err
	}

	session := uuid.New()

	log.Debug().
		Str("path", cfg.Path).
		Str("session", session.String()).
		Msg("Trail service initialized successfully")

	return &service{
		repo:    repo,
		cfg:     cfg,
		session: session,
	}, nil
}

func (s *service) Record(ctx context.Context, status thermal.Status) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	entry := Entry{
		Session:    s.session,
		Timestamp:  status.Snapshot.Timestamp,
		Mode:       status.Mode.String(),
		Band:       status.Band.String(),
		Escalation: status.Escalation,
		Snapshot:   status.Snapshot,
	}
	if err := s.repo.Append(entry); err != nil {
		return errFactory.Wrap(ErrMetricsCollection, err)
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func (*noopCollector) Record(context.Context, thermal.Status) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}
