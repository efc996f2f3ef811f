package process_test

import (
	"context"
	"sync"
	"testing"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSystem struct {
	procs      []process.Info
	priority   map[int32]int
	affinity   map[int32][]int
	terminated []int32
	reclaimed  int
	failPID    int32
}

func newFakeSystem(procs ...process.Info) *fakeSystem {
	return &fakeSystem{procs: procs, priority: map[int32]int{}, affinity: map[int32][]int{}}
}

func (s *fakeSystem) Processes(context.Context) ([]process.Info, error) {
	return s.procs, nil
}

func (s *fakeSystem) SetPriority(pid int32, nice int) error {
	if pid == s.failPID {
		return errors.New().New(process.ErrSetPriority)
	}
	s.priority[pid] = nice
	return nil
}

func (s *fakeSystem) SetAffinity(pid int32, cores []int) error {
	s.affinity[pid] = cores
	return nil
}

func (s *fakeSystem) Terminate(_ context.Context, pid int32) error {
	if pid == s.failPID {
		return errors.New().New(process.ErrTerminate)
	}
	s.terminated = append(s.terminated, pid)
	return nil
}

func (s *fakeSystem) Reclaim(context.Context) error {
	s.reclaimed++
	return nil
}

func workloads() *fakeSystem {
	return newFakeSystem(
		process.Info{PID: 100, Name: "ollama", Cmdline: "/usr/bin/ollama serve"},
		process.Info{PID: 101, Name: "python3", Cmdline: "python3 -m ComfyUI.main --listen"},
		process.Info{PID: 102, Name: "bash", Cmdline: "-bash"},
		process.Info{PID: 103, Name: "python3", Cmdline: "python3 train.py --use-Torch"},
		process.Info{PID: process.Self(), Name: "thermalctl", Cmdline: "thermalctl run --patterns ollama"},
	)
}

func TestFindProcesses(t *testing.T) {
	th := process.NewThrottler(workloads(), logger.Nop())

	pids := th.FindProcesses(context.Background(), process.DefaultPatterns)
	assert.Equal(t, []int32{100, 101, 103}, pids)

	assert.Empty(t, th.FindProcesses(context.Background(), []string{"", "  "}))
	assert.Equal(t, []int32{102}, th.FindProcesses(context.Background(), []string{"BASH"}))
}

func TestThrottleAffinity(t *testing.T) {
	tests := []struct {
		nice  int
		cores []int
	}{
		{nice: 5, cores: nil},
		{nice: 6, cores: []int{0, 1}},
		{nice: 15, cores: []int{0, 1}},
		{nice: 16, cores: []int{0}},
		{nice: 40, cores: []int{0}},
	}

	for _, tt := range tests {
		sys := newFakeSystem()
		process.NewThrottler(sys, logger.Nop()).Throttle(context.Background(), []int32{7}, tt.nice)

		assert.Equal(t, min(tt.nice, process.MaxNice), sys.priority[7])
		assert.Equal(t, tt.cores, sys.affinity[7], "nice %d", tt.nice)
	}
}

func TestThrottleSkipsFailures(t *testing.T) {
	sys := newFakeSystem()
	sys.failPID = 8

	process.NewThrottler(sys, logger.Nop()).Throttle(context.Background(), []int32{7, 8, 9}, 19)
	assert.Len(t, sys.priority, 2)
	assert.NotContains(t, sys.priority, int32(8))
	assert.Equal(t, []int{0}, sys.affinity[8])
	assert.Len(t, sys.affinity, 3)
}

func TestThrottleConcurrent(t *testing.T) {
	sys := workloads()
	th := process.NewThrottler(sys, logger.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			th.Throttle(ctx, []int32{100, 101}, i*5)
		}()
		go func() {
			defer wg.Done()
			th.EmergencyTerminate(ctx, []string{"torch"})
		}()
	}
	wg.Wait()

	assert.Len(t, sys.terminated, 4)
	assert.Equal(t, 4, sys.reclaimed)
	assert.Len(t, sys.priority, 2)
}

func TestEmergencyTerminate(t *testing.T) {
	sys := workloads()
	sys.failPID = 101

	killed := process.NewThrottler(sys, logger.Nop()).EmergencyTerminate(context.Background(), process.DefaultPatterns)
	require.Equal(t, []int32{100, 103}, killed)
	assert.Equal(t, killed, sys.terminated)
	assert.Equal(t, 1, sys.reclaimed)
}
