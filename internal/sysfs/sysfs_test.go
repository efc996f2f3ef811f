package sysfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/thermalctl/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestReadAndWrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sys/class/hwmon/hwmon0/temp1_input", "45000\n")

	fs := sysfs.New(root, 0)
	ctx := context.Background()

	v, err := fs.ReadInt(ctx, "sys/class/hwmon/hwmon0/temp1_input")
	require.NoError(t, err)
	assert.Equal(t, int64(45000), v)

	require.NoError(t, fs.WriteString(ctx, "sys/class/hwmon/hwmon0/pwm1", "128"))
	s, err := fs.ReadString(ctx, "sys/class/hwmon/hwmon0/pwm1")
	require.NoError(t, err)
	assert.Equal(t, "128", s)
}

func TestReadMissing(t *testing.T) {
	fs := sysfs.New(t.TempDir(), 0)

	_, err := fs.ReadString(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, sysfs.IsNotExist(err))
	assert.False(t, sysfs.IsTimeout(err))
}

func TestReadIntParseError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "value", "abc")

	_, err := sysfs.New(root, 0).ReadInt(context.Background(), "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sysfs_parse_failed")
}

func TestGlobNaturalOrder(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"hwmon10", "hwmon2", "hwmon1"} {
		writeFile(t, root, filepath.Join("sys/class/hwmon", d, "name"), "x")
	}

	matches, err := sysfs.New(root, 0).Glob(context.Background(), "/sys/class/hwmon/hwmon*/name")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sys/class/hwmon/hwmon1/name",
		"sys/class/hwmon/hwmon2/name",
		"sys/class/hwmon/hwmon10/name",
	}, matches)
}

func TestWriteAtDoesNotCreate(t *testing.T) {
	fs := sysfs.New(t.TempDir(), 0)

	err := fs.WriteAt(context.Background(), "dev/cpu/0/msr", []byte{1}, 0x199)
	require.Error(t, err)
	assert.True(t, sysfs.IsNotExist(err))
}

func TestCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sys/class/hwmon/hwmon0/name", "coretemp")

	fs := sysfs.New(root, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, fs.Exists(ctx, "sys/class/hwmon/hwmon0/name"))
	assert.True(t, fs.Exists(context.Background(), "sys/class/hwmon/hwmon0/name"))

	_, err := fs.Glob(ctx, "sys/class/hwmon/*")
	assert.True(t, sysfs.IsTimeout(err))

	_, err = fs.ReadDir(ctx, "sys/class/hwmon")
	assert.True(t, sysfs.IsTimeout(err))

	names, err := fs.ReadDir(context.Background(), "sys/class/hwmon")
	require.NoError(t, err)
	assert.Equal(t, []string{"hwmon0"}, names)
}

func TestReadTimesOut(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, unix.Mkfifo(filepath.Join(root, "stuck"), 0o644))

	start := time.Now()
	_, err := sysfs.New(root, 50*time.Millisecond).ReadString(context.Background(), "stuck")
	require.Error(t, err)
	assert.True(t, sysfs.IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}
