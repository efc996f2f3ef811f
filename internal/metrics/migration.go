package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
)

func backupTrail(path string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	// Create backup filename with timestamp
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := filepath.Join(filepath.Dir(path),
		fmt.Sprintf("%s.v%d_%s.bak", filepath.Base(path), version, timestamp))

	if err := os.Rename(path, backupPath); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Trail backup created")

	return backupPath, nil
}

// loadTrail reads the existing trail. A file that cannot be decoded or has a
// different schema version is moved aside and an empty trail is returned.
func loadTrail(path string, log logger.Logger) ([]Entry, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("Creating trail...")
		return nil, nil
	}
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	version, entries, err := decodeTrail(data)

	log.Debug().
		Int("version", version).
		Err(err).
		Msg("Current schema version")

	if err != nil || version != SchemaVersion {
		if _, err := backupTrail(path, version, log); err != nil {
			return nil, err
		}
		return nil, nil
	}

	log.Debug().
		Int("version", version).
		Int("entries", len(entries)).
		Msg("Schema version is current")

	return entries, nil
}
