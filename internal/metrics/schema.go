package metrics

import (
	"encoding/json"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

const SchemaVersion = 1

// trailDocument is the on-disk layout of the trail file.
type trailDocument struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

func encodeTrail(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(trailDocument{Version: SchemaVersion, Entries: entries}, "", "  ")
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return append(data, '\n'), nil
}

// decodeTrail returns the document version alongside the entries so callers
// can decide whether to migrate.
func decodeTrail(data []byte) (int, []Entry, error) {
	var doc trailDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, nil, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	return doc.Version, doc.Entries, nil
}
