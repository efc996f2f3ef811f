package gpu

import (
	"sync"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlController is the library lifecycle the manager needs; tests swap in
// a fake.
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDeviceCount() (int, error)
	GetDevice(index int) (nvmlDevice, error)
}

// library binds nvmlController to the process-wide NVML library. Shutdown
// is idempotent so cleanup can run after a failed start.
type library struct {
	mu     sync.Mutex
	loaded bool
}

func (l *library) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return nil
	}
	if err := check(ErrInitFailed, nvml.Init()); err != nil {
		return err
	}
	l.loaded = true

	return nil
}

func (l *library) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return nil
	}
	l.loaded = false

	return check(ErrShutdownFailed, nvml.Shutdown())
}

func (l *library) ready() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return errors.New().New(ErrNotInitialized)
	}

	return nil
}

func (l *library) GetDeviceCount() (int, error) {
	if err := l.ready(); err != nil {
		return 0, err
	}

	count, ret := nvml.DeviceGetCount()

	return count, check(ErrDeviceCountFailed, ret)
}

func (l *library) GetDevice(index int) (nvmlDevice, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}

	handle, ret := nvml.DeviceGetHandleByIndex(index)
	if err := check(ErrDeviceNotFound, ret); err != nil {
		return nil, err
	}

	return handle, nil
}
