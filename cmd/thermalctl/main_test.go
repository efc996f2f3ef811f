package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRoot(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	hwmon := filepath.Join(root, "sys", "class", "hwmon", "hwmon0")
	require.NoError(t, os.MkdirAll(hwmon, 0o755))
	for name, content := range map[string]string{
		"name":        "coretemp\n",
		"temp1_input": "40000\n",
		"temp1_label": "Package id 0\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(hwmon, name), []byte(content), 0o644))
	}

	cfgFile := filepath.Join(t.TempDir(), "thermalctl.toml")
	require.NoError(t, os.WriteFile(cfgFile, nil, 0o600))

	return root, cfgFile
}

func execute(t *testing.T, args ...string) string {
	t.Helper()

	// Keep host tools such as sensors and cpupower out of the run.
	t.Setenv("PATH", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	return out.String()
}

func TestSensorsCommandJSON(t *testing.T) {
	root, cfgFile := fakeRoot(t)

	out := execute(t, "sensors", "--json", "--root", root, "--config", cfgFile)

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.InDelta(t, 40.0, snap["cpu_temp"], 0.001)
	assert.Nil(t, snap["alerts"])
}

func TestDetectCommandReportsFallback(t *testing.T) {
	root, cfgFile := fakeRoot(t)

	out := execute(t, "detect", "--root", root, "--config", cfgFile)

	assert.Contains(t, out, "Thermal max:    70°C")
	assert.Contains(t, out, "CPU identification unreadable")
	assert.Contains(t, out, "Thresholds:")
}

func TestLoopSourceBeforeLoop(t *testing.T) {
	var s loopSource

	assert.Equal(t, "", s.GetStatus().ModeName)
	assert.Nil(t, s.History())
}
