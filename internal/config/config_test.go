package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/config"
	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thermalctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
thermal_interval = "3s"
monitor_interval = "6s"
comfort = 55.0
critical = 80
fan_low = 20
auto_fan = false
monitor = true
mode = "powersaver"
patterns = ["ollama", "whisper"]
log_level = "debug"
metrics_listen = "127.0.0.1:9464"
trail_path = "/tmp/trail.json"
`)
	t.Setenv("THERMALCTL_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.ThermalInterval)
	assert.Equal(t, 6*time.Second, cfg.MonitorInterval)
	assert.InDelta(t, 55.0, cfg.Comfort, 1e-9)
	assert.InDelta(t, 80.0, cfg.Critical, 1e-9)
	assert.Zero(t, cfg.Warning)
	assert.Equal(t, 20, cfg.FanLow)
	assert.Equal(t, 50, cfg.FanMedium)
	assert.False(t, cfg.AutoFan)
	assert.True(t, cfg.Monitor)
	assert.Equal(t, "powersaver", cfg.Mode)
	assert.Equal(t, []string{"ollama", "whisper"}, cfg.Patterns)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsListen)
	assert.Equal(t, "/tmp/trail.json", cfg.TrailPath)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(nil, config.WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 2*time.Second, cfg.ThermalInterval)
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval)
	assert.Equal(t, 10*time.Second, cfg.Backoff)
	assert.Equal(t, 30*time.Second, cfg.ActuationRetry)
	assert.Equal(t, 100, cfg.FanMax)
	assert.True(t, cfg.AutoFan)
	assert.False(t, cfg.Monitor)
	assert.Contains(t, cfg.Patterns, "llama.cpp")
	assert.Equal(t, 100, cfg.HistorySize)
	assert.Equal(t, 1000, cfg.TrailMax)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "/", cfg.Root)
	assert.Empty(t, cfg.MetricsListen)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	t.Setenv("THERMALCTL_CONFIG", writeConfig(t, "This is not a valid TOML file\n"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(nil, config.WithConfigFile(filepath.Join(t.TempDir(), "absent.toml")))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("THERMALCTL_CONFIG", writeConfig(t, `log_level = "invalid"`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestValidation(t *testing.T) {
	for _, content := range []string{
		`fan_high = 120`,
		`thermal_interval = "0s"`,
		`mode = "turbo"`,
		`metrics_listen = "not an address"`,
		`patterns = ["ollama", ""]`,
	} {
		_, err := config.Load(nil, config.WithConfigFile(writeConfig(t, content)))
		assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig), content)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("THERMALCTL_CONFIG", writeConfig(t, `monitor_interval = "6s"`))
	t.Setenv("THERMALCTL_MONITOR_INTERVAL", "7s")
	t.Setenv("THERMALCTL_LOG_LEVEL", "info")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.MonitorInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("THERMALTEST_CONFIG", writeConfig(t, `comfort = 55.0`))
	t.Setenv("THERMALTEST_WAIT_RETRIES", "3")
	t.Setenv("THERMALCTL_WAIT_RETRIES", "99")

	cfg, err := config.Load(nil, config.WithEnvPrefix("THERMALTEST"))
	require.NoError(t, err)
	assert.InDelta(t, 55.0, cfg.Comfort, 0.001)
	assert.Equal(t, 3, cfg.WaitRetries)
}

func TestLogLevelFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--log-level", "debug",
		"--monitor",
		"--patterns", "a,b",
		"--config", writeConfig(t, `log_level = "error"`),
	}))

	cfg, err := config.Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.True(t, cfg.Monitor)
	assert.Equal(t, []string{"a", "b"}, cfg.Patterns)
	// Unset flags leave file and default values alone.
	assert.True(t, cfg.AutoFan)
	assert.Equal(t, "/var/lib/thermalctl/trail.json", cfg.TrailPath)
}
