package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// Manager owns the NVML session and the devices discovered when it started.
type Manager interface {
	Devices() []Device
	Shutdown() error
}

// Device is one NVIDIA adapter.
type Device interface {
	Index() int
	Name() string
	Temperature() (Temperature, error)
	PowerUsage() (Watts, error)
	Fans() FanController
}

// FanController manages the fans of one device. Fan indexes are 0-based.
type FanController interface {
	Count() int
	GetSpeed(fanIndex int) (FanSpeed, error)
	SetSpeed(fanIndex int, speed FanSpeed) error
	EnableAuto(fanIndex int) error
	IsAutoMode(fanIndex int) bool
}

// nvmlDevice is the subset of nvml.Device used here.
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetNumFans() (int, nvml.Return)
	GetFanSpeed_v2(int) (uint32, nvml.Return)
	GetMinMaxFanSpeed() (int, int, nvml.Return)
	SetFanSpeed_v2(int, int) nvml.Return
	SetDefaultFanSpeed_v2(int) nvml.Return
}

// Domain types for type safety and validation
type (
	Temperature int
	FanSpeed    int
	Watts       float64

	FanSpeedLimits struct {
		Min, Max FanSpeed
	}
)
