package process

import (
	"context"
	"os"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

const dropCaches = "proc/sys/vm/drop_caches"

// Info is the identity of one running process.
type Info struct {
	PID     int32
	Name    string
	Cmdline string
}

// System is the OS surface the throttler acts through.
type System interface {
	Processes(ctx context.Context) ([]Info, error)
	SetPriority(pid int32, nice int) error
	SetAffinity(pid int32, cores []int) error
	Terminate(ctx context.Context, pid int32) error
	// Reclaim flushes dirty pages and drops the page cache.
	Reclaim(ctx context.Context) error
}

// Host is the System of the running machine.
type Host struct {
	fs *sysfs.FS
}

func NewHost(fs *sysfs.FS) *Host {
	return &Host{fs: fs}
}

func (h *Host) Processes(ctx context.Context) ([]Info, error) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.New().Wrap(ErrListProcesses, err)
	}

	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		// Processes can exit between listing and inspection.
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		infos = append(infos, Info{PID: p.Pid, Name: name, Cmdline: cmdline})
	}

	return infos, nil
}

func (*Host) SetPriority(pid int32, nice int) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, int(pid), nice); err != nil {
		return errors.New().Wrap(ErrSetPriority, err)
	}

	return nil
}

func (*Host) SetAffinity(pid int32, cores []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(int(pid), &set); err != nil {
		return errors.New().Wrap(ErrSetAffinity, err)
	}

	return nil
}

func (*Host) Terminate(ctx context.Context, pid int32) error {
	p, err := gopsprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return errors.New().Wrap(ErrTerminate, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return errors.New().Wrap(ErrTerminate, err)
	}

	return nil
}

func (h *Host) Reclaim(ctx context.Context) error {
	unix.Sync()
	if err := h.fs.WriteString(ctx, dropCaches, "3"); err != nil {
		return errors.New().Wrap(ErrReclaim, err)
	}

	return nil
}

// Self is the daemon's own pid, never a throttling target.
func Self() int32 {
	return int32(os.Getpid())
}
