// Package process lowers the priority of, and as a last resort terminates,
// the compute workloads that heat the machine.
package process

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/thermalctl/internal/logger"
)

// DefaultPatterns match common local inference and diffusion workloads.
var DefaultPatterns = []string{
	"ollama",
	"llama-server",
	"llama.cpp",
	"koboldcpp",
	"text-generation",
	"vllm",
	"torch",
	"transformers",
	"stable-diffusion",
	"comfyui",
}

const (
	// Above these nice values the workload is confined to fewer cores.
	twoCoreNice = 5
	oneCoreNice = 15

	MaxNice = 19
)

// Throttler serialises Throttle and EmergencyTerminate.
type Throttler struct {
	mu   sync.Mutex
	sys  System
	self int32
	log  logger.Logger
}

func NewThrottler(sys System, log logger.Logger) *Throttler {
	return &Throttler{sys: sys, self: Self(), log: log}
}

// FindProcesses returns the pids whose name or command line contains any
// pattern, case-insensitively. The daemon never matches itself.
func (t *Throttler) FindProcesses(ctx context.Context, patterns []string) []int32 {
	procs, err := t.sys.Processes(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("Failed to list processes")
		return nil
	}

	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}

	var pids []int32
	for _, p := range procs {
		if p.PID == t.self {
			continue
		}
		name, cmdline := strings.ToLower(p.Name), strings.ToLower(p.Cmdline)
		for _, pat := range lowered {
			if strings.Contains(name, pat) || strings.Contains(cmdline, pat) {
				pids = append(pids, p.PID)
				break
			}
		}
	}

	return pids
}

// Throttle renices pids and, for high nice values, restricts their CPU
// affinity. Each step is attempted on its own; failures are logged and
// skipped.
func (t *Throttler) Throttle(ctx context.Context, pids []int32, nice int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nice = min(max(nice, 0), MaxNice)
	cores := affinityFor(nice)

	for _, pid := range pids {
		if ctx.Err() != nil {
			return
		}
		if err := t.sys.SetPriority(pid, nice); err != nil {
			t.log.Debug().Int32("pid", pid).Err(err).Msg("Failed to set priority")
		}
		if cores != nil {
			if err := t.sys.SetAffinity(pid, cores); err != nil {
				t.log.Debug().Int32("pid", pid).Err(err).Msg("Failed to set affinity")
			}
		}
	}

	if len(pids) > 0 {
		t.log.Info().Int("count", len(pids)).Int("nice", nice).Ints("cores", cores).Msg("Processes throttled")
	}
}

// EmergencyTerminate sends SIGTERM to every matching process, then flushes
// and drops the page cache. It returns the pids signalled.
func (t *Throttler) EmergencyTerminate(ctx context.Context, patterns []string) []int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	pids := t.FindProcesses(ctx, patterns)

	var killed []int32
	for _, pid := range pids {
		if err := t.sys.Terminate(ctx, pid); err != nil {
			t.log.Warn().Int32("pid", pid).Err(err).Msg("Failed to terminate process")
			continue
		}
		killed = append(killed, pid)
	}

	if err := t.sys.Reclaim(ctx); err != nil {
		t.log.Warn().Err(err).Msg("Failed to reclaim memory")
	}

	t.log.Warn().Int("count", len(killed)).Msg("Emergency termination")

	return killed
}

func affinityFor(nice int) []int {
	switch {
	case nice > oneCoreNice:
		return []int{0}
	case nice > twoCoreNice:
		return []int{0, 1}
	}

	return nil
}
