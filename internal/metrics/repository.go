package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

type repository struct {
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	entries       []Entry
	dirty         bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.Path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	entries, err := loadTrail(cfg.Path, log)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Int("max_entries", cfg.MaxEntries).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("Trail repository initialized")

	repo := &repository{
		logger:        log,
		cfg:           cfg,
		entries:       trim(entries, cfg.MaxEntries),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
		flushTicker:   time.NewTicker(cfg.FlushInterval),
	}

	// Start background goroutine for periodic flushing
	go repo.flusher()

	return repo, nil
}

func (r *repository) Append(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = trim(append(r.entries, entry), r.cfg.MaxEntries)
	r.dirty = true

	return nil
}

func (r *repository) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Entry(nil), r.entries...)
}

func (r *repository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		// Signal the flusher goroutine to stop
		close(r.shutdownChan)

		// Stop the ticker
		r.flushTicker.Stop()

		// Wait for the flusher to finish its final flush
		<-r.flushDoneChan

		r.mu.Lock()
		defer r.mu.Unlock()
		if ferr := r.flush(); ferr != nil {
			err = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "final_flush",
				Error: ferr.Error(),
			})
			return
		}

		r.logger.Info().Msg("Trail repository closed gracefully")
	})

	return err
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to flush trail")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush rewrites the trail file through a temporary file and rename, so a
// crash never leaves a truncated trail. Callers hold r.mu.
func (r *repository) flush() error {
	if !r.dirty {
		return nil
	}

	errFactory := errors.New()

	data, err := encodeTrail(r.entries)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- replaceFile(r.cfg.Path, data)
	}()

	timer := time.NewTimer(r.cfg.WriteTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	case <-timer.C:
		return errFactory.WithMessage(ErrOperationTimeout, "trail write timed out")
	}

	r.logger.Debug().Int("records", len(r.entries)).Msg("Flushed trail to disk")
	r.dirty = false

	return nil
}

func replaceFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, defaultFilePerm); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// trim drops the oldest entries beyond limit.
func trim(entries []Entry, limit int) []Entry {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}

	return append([]Entry(nil), entries[len(entries)-limit:]...)
}
