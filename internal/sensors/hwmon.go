package sensors

import (
	"context"
	"path"
	"regexp"
	"strings"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
)

const hwmonPattern = "sys/class/hwmon/hwmon*"

type attribute struct {
	prefix string
	suffix string
	kind   Kind
	unit   string
	scale  float64
}

// Kernel hwmon ABI: m°C, RPM, mV, µW, mA, µJ.
var hwmonAttributes = []attribute{
	{"temp", "input", KindTemperature, UnitCelsius, 1e-3},
	{"fan", "input", KindFan, UnitRPM, 1},
	{"in", "input", KindVoltage, UnitVolt, 1e-3},
	{"power", "average", KindPower, UnitWatt, 1e-6},
	{"power", "input", KindPower, UnitWatt, 1e-6},
	{"curr", "input", KindCurrent, UnitAmpere, 1e-3},
	{"energy", "input", KindEnergy, UnitJoule, 1e-6},
}

var channelFile = regexp.MustCompile(`^([a-z]+)(\d+)_([a-z]+)$`)

type hwmonBackend struct {
	fs *sysfs.FS
}

func NewHwmonBackend(fs *sysfs.FS) Backend {
	return &hwmonBackend{fs: fs}
}

func (*hwmonBackend) Name() string {
	return "hwmon"
}

func (b *hwmonBackend) Read(ctx context.Context) ([]Reading, error) {
	errFactory := errors.New()

	dirs, err := b.fs.Glob(ctx, hwmonPattern)
	if err != nil {
		return nil, errFactory.Wrap(ErrBackendFailed, err)
	}
	if len(dirs) == 0 {
		return nil, errFactory.WithMessage(ErrBackendUnavailable, "no hwmon devices")
	}

	var readings []Reading
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		chip, err := b.fs.ReadString(ctx, path.Join(dir, "name"))
		if err != nil || chip == "" {
			chip = path.Base(dir)
		}

		entries, err := b.fs.ReadDir(ctx, dir)
		if err != nil {
			continue
		}

		for _, name := range entries {
			if r, ok := b.readChannel(ctx, dir, chip, name); ok {
				readings = append(readings, r)
			}
		}
	}

	return readings, nil
}

func (b *hwmonBackend) readChannel(ctx context.Context, dir, chip, name string) (Reading, bool) {
	m := channelFile.FindStringSubmatch(name)
	if m == nil {
		return Reading{}, false
	}

	for _, attr := range hwmonAttributes {
		if m[1] != attr.prefix || m[3] != attr.suffix {
			continue
		}

		file := path.Join(dir, name)
		raw, err := b.fs.ReadInt(ctx, file)
		if err != nil {
			return Reading{}, false
		}

		channel := m[1] + m[2]
		label, err := b.fs.ReadString(ctx, path.Join(dir, channel+"_label"))
		if err != nil || strings.TrimSpace(label) == "" {
			label = channel
		}

		return Reading{
			Kind:   attr.kind,
			Value:  float64(raw) * attr.scale,
			Unit:   attr.unit,
			Chip:   chip,
			Label:  label,
			Path:   b.fs.Path(file),
			Source: "hwmon",
		}, true
	}

	return Reading{}, false
}
