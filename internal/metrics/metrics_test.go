package metrics_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/metrics"
	"codeberg.org/mutker/thermalctl/internal/sensors"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testConfig(t *testing.T) metrics.Config {
	t.Helper()

	return metrics.Config{
		Path:          filepath.Join(t.TempDir(), "state", "trail.json"),
		MaxEntries:    3,
		FlushInterval: time.Hour,
		Enabled:       true,
	}
}

func entry(i int) metrics.Entry {
	return metrics.Entry{
		Timestamp:  time.Unix(int64(i), 0).UTC(),
		Mode:       "balanced",
		Band:       "warning",
		Escalation: i,
	}
}

func readDocument(t *testing.T, path string) (int, []metrics.Entry) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Version int             `json:"version"`
		Entries []metrics.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	return doc.Version, doc.Entries
}

func TestRepositoryKeepsNewestEntries(t *testing.T) {
	cfg := testConfig(t)
	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Append(entry(i)))
	}

	got := repo.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].Escalation)
	assert.Equal(t, 5, got[2].Escalation)

	require.NoError(t, repo.Close())

	version, onDisk := readDocument(t, cfg.Path)
	assert.Equal(t, metrics.SchemaVersion, version)
	assert.Len(t, onDisk, 3)
	assert.NoFileExists(t, cfg.Path+".tmp")
}

func TestRepositoryReloadsTrail(t *testing.T) {
	cfg := testConfig(t)
	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Append(entry(1)))
	require.NoError(t, repo.Append(entry(2)))
	require.NoError(t, repo.Close())

	repo, err = metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	got := repo.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Escalation)
}

func TestRepositoryCloseIsIdempotent(t *testing.T) {
	repo, err := metrics.NewRepository(testConfig(t), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())
}

func TestRepositoryBacksUpUnreadableTrail(t *testing.T) {
	tests := []struct {
		name    string
		content string
		backup  string
	}{
		{name: "corrupt", content: "{not json", backup: "trail.json.v0_*.bak"},
		{name: "old version", content: `{"version":0,"entries":[]}`, backup: "trail.json.v0_*.bak"},
		{name: "newer version", content: `{"version":7,"entries":[{"mode":"x"}]}`, backup: "trail.json.v7_*.bak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Path), 0o755))
			require.NoError(t, os.WriteFile(cfg.Path, []byte(tt.content), 0o644))

			repo, err := metrics.NewRepository(cfg, logger.Nop())
			require.NoError(t, err)
			defer repo.Close()

			assert.Empty(t, repo.Entries())

			matches, err := filepath.Glob(filepath.Join(filepath.Dir(cfg.Path), tt.backup))
			require.NoError(t, err)
			assert.Len(t, matches, 1)
			assert.NoFileExists(t, cfg.Path)
		})
	}
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := metrics.NewRepository(metrics.Config{MaxEntries: 1, FlushInterval: time.Second}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidPath))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, metrics.DefaultConfig().Validate())

	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.Path = ""
	assert.True(t, errors.HasCode(cfg.Validate(), metrics.ErrInvalidPath))

	cfg = metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.MaxEntries = 0
	assert.True(t, errors.HasCode(cfg.Validate(), metrics.ErrInvalidConfig))
}

func TestServiceRecordsStatus(t *testing.T) {
	cfg := testConfig(t)
	collector, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)

	temp := 81.5
	status := thermal.Status{
		Mode:       thermal.ModePowerSaver,
		Band:       thermal.BandCritical,
		Escalation: 2,
		Snapshot:   sensors.Snapshot{Timestamp: time.Unix(100, 0).UTC(), CPUTemp: &temp},
	}
	require.NoError(t, collector.Record(context.Background(), status))
	require.NoError(t, collector.Record(context.Background(), status))
	require.NoError(t, collector.Close())

	_, entries := readDocument(t, cfg.Path)
	require.Len(t, entries, 2)
	assert.Equal(t, "powersaver", entries[0].Mode)
	assert.Equal(t, "critical", entries[0].Band)
	assert.Equal(t, 2, entries[0].Escalation)
	require.NotNil(t, entries[0].Snapshot.CPUTemp)
	assert.InDelta(t, 81.5, *entries[0].Snapshot.CPUTemp, 0.001)
	assert.Equal(t, entries[0].Session, entries[1].Session)
}

func TestServiceRejectsCancelledContext(t *testing.T) {
	collector, err := metrics.NewService(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = collector.Record(ctx, thermal.Status{})
	assert.True(t, errors.HasCode(err, metrics.ErrOperationTimeout))
}

func TestDisabledServiceIsNoop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enabled = false

	collector, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, collector.Record(context.Background(), thermal.Status{}))
	require.NoError(t, collector.Close())

	assert.NoFileExists(t, cfg.Path)
}

func TestRepositoryFlushTimesOut(t *testing.T) {
	cfg := testConfig(t)
	cfg.WriteTimeout = 50 * time.Millisecond

	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)

	// Opening a fifo for writing blocks until a reader appears.
	require.NoError(t, unix.Mkfifo(cfg.Path+".tmp", 0o644))
	require.NoError(t, repo.Append(entry(1)))

	start := time.Now()
	err = repo.Close()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrStorageClose))
	assert.Less(t, time.Since(start), time.Second)
}
