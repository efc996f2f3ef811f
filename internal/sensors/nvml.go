package sensors

import (
	"context"
	"fmt"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/gpu"
)

const nvmlChip = "nvml"

type nvmlBackend struct {
	manager gpu.Manager
}

// NewNVMLBackend reads NVIDIA GPUs through an initialised gpu.Manager.
func NewNVMLBackend(manager gpu.Manager) Backend {
	return &nvmlBackend{manager: manager}
}

func (*nvmlBackend) Name() string {
	return "nvml"
}

func (b *nvmlBackend) Read(ctx context.Context) ([]Reading, error) {
	if b.manager == nil {
		return nil, errors.New().New(ErrBackendUnavailable)
	}

	var readings []Reading
	for _, dev := range b.manager.Devices() {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		chip := fmt.Sprintf("%s%d", nvmlChip, dev.Index())
		if temp, err := dev.Temperature(); err == nil {
			readings = append(readings, Reading{
				Kind: KindTemperature, Value: float64(temp), Unit: UnitCelsius,
				Chip: chip, Label: "edge", Source: "nvml",
			})
		}
		if watts, err := dev.PowerUsage(); err == nil {
			readings = append(readings, Reading{
				Kind: KindPower, Value: float64(watts), Unit: UnitWatt,
				Chip: chip, Label: "power", Source: "nvml",
			})
		}

		fans := dev.Fans()
		for i := 0; i < fans.Count(); i++ {
			speed, err := fans.GetSpeed(i)
			if err != nil {
				continue
			}
			readings = append(readings, Reading{
				Kind: KindFan, Value: float64(speed), Unit: UnitPercent,
				Chip: chip, Label: fmt.Sprintf("fan%d", i), Source: "nvml",
			})
		}
	}

	return readings, nil
}
