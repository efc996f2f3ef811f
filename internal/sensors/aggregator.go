package sensors

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/thermalctl/internal/command"
	"codeberg.org/mutker/thermalctl/internal/gpu"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/safego"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
)

const DefaultBackendTimeout = 5 * time.Second

// Aggregator samples every backend concurrently and merges the results.
type Aggregator struct {
	backends []Backend
	timeout  time.Duration
	limits   AlertLimits
	log      logger.Logger
	now      func() time.Time
}

type Option func(*Aggregator)

func WithBackendTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func NewAggregator(log logger.Logger, limits AlertLimits, backends []Backend, opts ...Option) *Aggregator {
	a := &Aggregator{
		backends: backends,
		timeout:  DefaultBackendTimeout,
		limits:   limits,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// DefaultBackends returns the standard backend set. File-backed sources come
// first so merged readings keep their paths; manager may be nil.
func DefaultBackends(fs *sysfs.FS, runner command.Runner, manager gpu.Manager) []Backend {
	backends := []Backend{
		NewHwmonBackend(fs),
		NewThermalZoneBackend(fs),
		NewPowerSupplyBackend(fs),
		NewLMSensorsBackend(runner),
	}
	if manager != nil {
		backends = append(backends, NewNVMLBackend(manager))
	}

	return backends
}

// Sample never fails: a backend that errors, panics or times out simply
// contributes nothing.
func (a *Aggregator) Sample(ctx context.Context) Snapshot {
	results := make([][]Reading, len(a.backends))

	var wg sync.WaitGroup
	for i, b := range a.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.read(ctx, b)
		}()
	}
	wg.Wait()

	seen := make(map[readingKey]struct{})
	var merged []Reading
	for _, rs := range results {
		for _, r := range rs {
			k := r.key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, r)
		}
	}

	return buildSnapshot(a.now(), merged, a.limits)
}

func (a *Aggregator) read(ctx context.Context, b Backend) []Reading {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		readings []Reading
		err      error
	}
	done := make(chan outcome, 1)

	safego.Go(func() {
		var readings []Reading
		err := safego.Call(func() error {
			var err error
			readings, err = b.Read(ctx)
			return err
		})
		done <- outcome{readings, err}
	})

	select {
	case <-ctx.Done():
		a.log.Debug().Str("backend", b.Name()).Err(ctx.Err()).Msg("Sensor backend timed out")
		return nil
	case o := <-done:
		if o.err != nil {
			a.log.Debug().Str("backend", b.Name()).Err(o.err).Msg("Sensor backend failed")
			return nil
		}
		return o.readings
	}
}
