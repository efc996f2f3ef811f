package sensors

import (
	"context"
	"path"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
)

const thermalZonePattern = "sys/class/thermal/thermal_zone*"

type thermalZoneBackend struct {
	fs *sysfs.FS
}

func NewThermalZoneBackend(fs *sysfs.FS) Backend {
	return &thermalZoneBackend{fs: fs}
}

func (*thermalZoneBackend) Name() string {
	return "thermal_zone"
}

// Read reports one temperature per zone, chip being the zone type.
func (b *thermalZoneBackend) Read(ctx context.Context) ([]Reading, error) {
	errFactory := errors.New()

	zones, err := b.fs.Glob(ctx, thermalZonePattern)
	if err != nil {
		return nil, errFactory.Wrap(ErrBackendFailed, err)
	}
	if len(zones) == 0 {
		return nil, errFactory.WithMessage(ErrBackendUnavailable, "no thermal zones")
	}

	readings := make([]Reading, 0, len(zones))
	for _, zone := range zones {
		file := path.Join(zone, "temp")
		milli, err := b.fs.ReadInt(ctx, file)
		if err != nil {
			continue
		}

		zoneType, err := b.fs.ReadString(ctx, path.Join(zone, "type"))
		if err != nil || zoneType == "" {
			zoneType = "thermal_zone"
		}

		readings = append(readings, Reading{
			Kind:   KindTemperature,
			Value:  float64(milli) / 1000,
			Unit:   UnitCelsius,
			Chip:   zoneType,
			Label:  path.Base(zone),
			Path:   b.fs.Path(file),
			Source: "thermal_zone",
		})
	}

	return readings, nil
}
