package sensors

import (
	"context"
	"path"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
)

const powerSupplyPattern = "sys/class/power_supply/*"

// power_supply reports micro-units throughout.
var supplyAttributes = []struct {
	file string
	kind Kind
	unit string
}{
	{"voltage_now", KindVoltage, UnitVolt},
	{"current_now", KindCurrent, UnitAmpere},
	{"power_now", KindPower, UnitWatt},
	{"energy_now", KindEnergy, UnitWattHr},
}

type powerSupplyBackend struct {
	fs *sysfs.FS
}

func NewPowerSupplyBackend(fs *sysfs.FS) Backend {
	return &powerSupplyBackend{fs: fs}
}

func (*powerSupplyBackend) Name() string {
	return "power_supply"
}

func (b *powerSupplyBackend) Read(ctx context.Context) ([]Reading, error) {
	errFactory := errors.New()

	supplies, err := b.fs.Glob(ctx, powerSupplyPattern)
	if err != nil {
		return nil, errFactory.Wrap(ErrBackendFailed, err)
	}
	if len(supplies) == 0 {
		return nil, errFactory.WithMessage(ErrBackendUnavailable, "no power supplies")
	}

	var readings []Reading
	for _, supply := range supplies {
		name := path.Base(supply)
		for _, attr := range supplyAttributes {
			file := path.Join(supply, attr.file)
			micro, err := b.fs.ReadInt(ctx, file)
			if err != nil {
				continue
			}

			readings = append(readings, Reading{
				Kind:   attr.kind,
				Value:  float64(micro) / 1e6,
				Unit:   attr.unit,
				Chip:   name,
				Label:  attr.file,
				Path:   b.fs.Path(file),
				Source: "power_supply",
			})
		}
	}

	return readings, nil
}
