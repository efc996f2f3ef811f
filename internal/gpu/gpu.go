package gpu

import (
	"sync"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

type manager struct {
	nvml    nvmlController
	devices []Device
	log     logger.Logger
}

// New initializes NVML and opens every device. It fails when the NVML
// library is absent, which callers treat as "no NVIDIA GPU".
func New(log logger.Logger) (Manager, error) {
	return newManager(&library{}, log)
}

func newManager(ctrl nvmlController, log logger.Logger) (*manager, error) {
	errFactory := errors.New()

	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	count, err := ctrl.GetDeviceCount()
	if err != nil {
		if shutdownErr := ctrl.Shutdown(); shutdownErr != nil {
			log.Debug().Err(shutdownErr).Msg("NVML shutdown after failed init")
		}
		return nil, err
	}

	m := &manager{nvml: ctrl, log: log}
	for i := 0; i < count; i++ {
		handle, err := ctrl.GetDevice(i)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping GPU")
			continue
		}
		m.devices = append(m.devices, newDevice(i, handle, log))
	}

	if len(m.devices) == 0 {
		if shutdownErr := ctrl.Shutdown(); shutdownErr != nil {
			log.Debug().Err(shutdownErr).Msg("NVML shutdown after failed init")
		}
		return nil, errFactory.New(ErrDeviceNotFound)
	}

	return m, nil
}

func (m *manager) Devices() []Device {
	devices := make([]Device, len(m.devices))
	copy(devices, m.devices)

	return devices
}

func (m *manager) Shutdown() error {
	return m.nvml.Shutdown()
}

type device struct {
	index  int
	name   string
	handle nvmlDevice
	fans   FanController
	mu     sync.RWMutex
}

func newDevice(index int, handle nvmlDevice, log logger.Logger) *device {
	d := &device{index: index, handle: handle}

	name, ret := handle.GetName()
	if err := check(ErrDeviceNotFound, ret); err != nil {
		log.Warn().Err(err).Int("index", index).Msg("Failed to get GPU name")
	} else {
		d.name = name
		log.Info().Int("index", index).Str("name", name).Msg("Detected GPU")
	}

	fans, err := newFanController(handle, log)
	if err != nil {
		ev := log.Warn()
		if IsUnsupported(err) {
			ev = log.Debug()
		}
		ev.Err(err).Int("index", index).Msg("GPU fan control unavailable")
		fans = &fanController{}
	}
	d.fans = fans

	return d
}

func (d *device) Index() int {
	return d.index
}

func (d *device) Name() string {
	return d.name
}

func (d *device) Fans() FanController {
	return d.fans
}

func (d *device) Temperature() (Temperature, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	temp, ret := d.handle.GetTemperature(nvml.TEMPERATURE_GPU)
	if err := check(ErrTemperatureReadFailed, ret); err != nil {
		return 0, err
	}

	return Temperature(temp), nil
}

func (d *device) PowerUsage() (Watts, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	mw, ret := d.handle.GetPowerUsage()
	if err := check(ErrPowerReadFailed, ret); err != nil {
		return 0, err
	}

	return Watts(float64(mw) / milliWattsToWatts), nil
}
