// Package thermal runs the temperature-driven control loop: it samples the
// sensors, picks a power mode per temperature band and drives frequency,
// fans and workload priority accordingly.
package thermal

import (
	"context"
	"slices"
	"sync"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/frequency"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/safego"
	"codeberg.org/mutker/thermalctl/internal/sensors"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultThermalInterval = 2 * time.Second
	DefaultMonitorInterval = 5 * time.Second
	DefaultBackoff         = 10 * time.Second
	DefaultActuationRetry  = 30 * time.Second
	DefaultWaitRetries     = 10
	DefaultWaitCooldown    = 10 * time.Second
)

type Sampler interface {
	Sample(ctx context.Context) sensors.Snapshot
}

type FrequencySetter interface {
	SetFrequency(ctx context.Context, targetMHz int) (frequency.Result, error)
	Profile() frequency.Profile
}

type FanSetter interface {
	SetAll(ctx context.Context, pct int) error
}

type Throttler interface {
	FindProcesses(ctx context.Context, patterns []string) []int32
	Throttle(ctx context.Context, pids []int32, nice int)
	EmergencyTerminate(ctx context.Context, patterns []string) []int32
}

// Recorder receives the status after every monitor tick.
type Recorder interface {
	Record(ctx context.Context, status Status) error
}

// Dependencies are the actuators and sinks the loop drives. Any of them may
// be nil, in which case that part of actuation is skipped.
type Dependencies struct {
	Sampler   Sampler
	Frequency FrequencySetter
	Fans      FanSetter
	Processes Throttler
	Recorders []Recorder
}

type Config struct {
	Thresholds      Thresholds
	FanTiers        FanTiers
	Patterns        []string
	ThermalInterval time.Duration
	MonitorInterval time.Duration
	Backoff         time.Duration
	ActuationRetry  time.Duration
	WaitRetries     int
	WaitCooldown    time.Duration
	HistorySize     int
	// MonitorOnly computes and logs decisions without acting on them.
	MonitorOnly bool
	AutoFan     bool
	InitialMode Mode
}

func (c *Config) setDefaults() {
	if c.ThermalInterval <= 0 {
		c.ThermalInterval = DefaultThermalInterval
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = DefaultMonitorInterval
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.ActuationRetry <= 0 {
		c.ActuationRetry = DefaultActuationRetry
	}
	if c.WaitRetries <= 0 {
		c.WaitRetries = DefaultWaitRetries
	}
	if c.WaitCooldown <= 0 {
		c.WaitCooldown = DefaultWaitCooldown
	}
	if c.FanTiers == (FanTiers{}) {
		c.FanTiers = DefaultFanTiers()
	}
}

// Status is the externally visible loop state.
type Status struct {
	Mode           Mode             `json:"-"`
	ModeName       string           `json:"mode"`
	Band           Band             `json:"-"`
	BandName       string           `json:"band"`
	Escalation     int              `json:"escalation"`
	LastTransition time.Time        `json:"last_transition"`
	Snapshot       sensors.Snapshot `json:"snapshot"`
}

// ModeChange is delivered to subscribers on every mode transition.
type ModeChange struct {
	From   Mode
	To     Mode
	Band   Band
	Reason string
	At     time.Time
}

type Loop struct {
	cfg  Config
	deps Dependencies
	log  logger.Logger
	now  func() time.Time

	mu             sync.RWMutex
	state          Escalation
	lastTransition time.Time
	snapshot       sensors.Snapshot

	history *history

	subsMu sync.Mutex
	subs   []func(ModeChange)

	freqMu      sync.Mutex
	freqMode    Mode
	freqApplied bool
	freqOK      bool
	freqAttempt time.Time
}

type Option func(*Loop)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

func New(cfg Config, deps Dependencies, log logger.Logger, opts ...Option) *Loop {
	cfg.setDefaults()

	l := &Loop{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		now:     time.Now,
		history: newHistory(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.state = Escalation{Mode: cfg.InitialMode, Band: BandComfort}
	l.lastTransition = l.now()

	return l
}

// Tick runs one thermal decision: sample, decide, actuate. Actuation
// failures are returned joined but never leave the state inconsistent.
func (l *Loop) Tick(ctx context.Context) (Decision, error) {
	snap := l.deps.Sampler.Sample(ctx)

	l.mu.Lock()
	l.snapshot = snap
	temp, ok := snap.Temperature()
	if !ok {
		d := Decision{Escalation: l.state}
		l.mu.Unlock()
		l.log.Debug().Msg("No temperature available, state unchanged")
		return d, nil
	}

	prev := l.state
	d := Decide(prev, temp, l.cfg.Thresholds)
	l.state = d.Escalation
	changed := d.Mode != prev.Mode
	if changed {
		l.lastTransition = l.now()
	}
	l.mu.Unlock()

	l.logTick(temp, prev, d, snap)

	if changed {
		l.notify(ModeChange{From: prev.Mode, To: d.Mode, Band: d.Band, Reason: "temperature", At: l.now()})
	}

	if l.cfg.MonitorOnly {
		return d, nil
	}

	return d, l.actuate(ctx, d)
}

func (l *Loop) actuate(ctx context.Context, d Decision) error {
	var errs []error

	if err := l.applyFrequency(ctx, d.Mode); err != nil {
		errs = append(errs, err)
	}

	if l.deps.Processes != nil {
		if d.Nice > 0 {
			pids := l.deps.Processes.FindProcesses(ctx, l.cfg.Patterns)
			l.deps.Processes.Throttle(ctx, pids, d.Nice)
		}
		if d.Kill {
			l.deps.Processes.EmergencyTerminate(ctx, l.cfg.Patterns)
		}
	}

	if err := l.applyFans(ctx, d.Band); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// applyFrequency sets the frequency for mode when it differs from what was
// last applied. A failed attempt is repeated no sooner than ActuationRetry.
func (l *Loop) applyFrequency(ctx context.Context, mode Mode) error {
	if l.deps.Frequency == nil {
		return nil
	}

	l.freqMu.Lock()
	defer l.freqMu.Unlock()

	now := l.now()
	if l.freqApplied && l.freqMode == mode {
		if l.freqOK || now.Sub(l.freqAttempt) < l.cfg.ActuationRetry {
			return nil
		}
	}

	target := l.deps.Frequency.Profile().For(mode)
	res, err := l.deps.Frequency.SetFrequency(ctx, target)
	l.freqApplied, l.freqMode, l.freqAttempt, l.freqOK = true, mode, now, err == nil
	if err != nil {
		l.log.Warn().Str("mode", mode.String()).Int("target_mhz", target).Err(err).Msg("Frequency actuation unavailable")
		return err
	}

	l.log.Info().
		Str("mode", mode.String()).
		Int("applied_mhz", res.AppliedMHz).
		Str("method", res.Method.String()).
		Msg("Frequency set")

	return nil
}

func (l *Loop) applyFans(ctx context.Context, band Band) error {
	if l.deps.Fans == nil || !l.cfg.AutoFan {
		return nil
	}

	return l.deps.Fans.SetAll(ctx, l.cfg.FanTiers.For(band))
}

// Monitor runs one monitor tick: sample, remember and record the snapshot,
// and set the fan tier from the snapshot temperature.
func (l *Loop) Monitor(ctx context.Context) error {
	snap := l.deps.Sampler.Sample(ctx)
	l.history.add(snap)

	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()

	for _, a := range snap.Alerts {
		l.log.Warn().Str("alert", a).Msg("Temperature alert")
	}

	status := l.GetStatus()

	var errs []error
	for _, r := range l.deps.Recorders {
		if err := r.Record(ctx, status); err != nil {
			errs = append(errs, err)
		}
	}

	if temp, ok := snap.Temperature(); ok && !l.cfg.MonitorOnly {
		if err := l.applyFans(ctx, l.cfg.Thresholds.Band(temp)); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Run drives Tick every ThermalInterval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, "thermal", l.cfg.ThermalInterval, func(ctx context.Context) error {
		_, err := l.Tick(ctx)
		return err
	})
}

// RunMonitor drives Monitor every MonitorInterval until ctx is cancelled.
func (l *Loop) RunMonitor(ctx context.Context) error {
	return l.run(ctx, "monitor", l.cfg.MonitorInterval, l.Monitor)
}

func (l *Loop) run(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := safego.Call(func() error {
				return tick(ctx)
			})
			if err == nil {
				continue
			}

			if coded, ok := errors.AsCoded(err); ok {
				l.log.ErrorWithCode(coded).Str("loop", name).Dur("backoff", l.cfg.Backoff).Msg("Tick failed")
			} else {
				l.log.Error().Str("loop", name).Err(err).Dur("backoff", l.cfg.Backoff).Msg("Tick failed")
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.cfg.Backoff):
			}
		}
	}
}

func (l *Loop) GetStatus() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Status{
		Mode:           l.state.Mode,
		ModeName:       l.state.Mode.String(),
		Band:           l.state.Band,
		BandName:       l.state.Band.String(),
		Escalation:     l.state.Counter,
		LastTransition: l.lastTransition,
		Snapshot:       l.snapshot,
	}
}

// RequestMode switches to mode unless it is less conservative than the
// current band allows.
func (l *Loop) RequestMode(ctx context.Context, mode Mode) error {
	l.mu.Lock()
	band := l.state.Band
	if !mode.AtLeast(band.MinimumMode()) {
		l.mu.Unlock()
		return errors.New().WithData(ErrModeRejected, mode.String()+" in "+band.String()+" band")
	}

	prev := l.state.Mode
	l.state.Mode = mode
	if prev != mode {
		l.lastTransition = l.now()
	}
	l.mu.Unlock()

	if prev == mode {
		return nil
	}

	l.log.Info().Str("from", prev.String()).Str("to", mode.String()).Msg("Mode requested")
	l.notify(ModeChange{From: prev, To: mode, Band: band, Reason: "request", At: l.now()})

	if l.cfg.MonitorOnly {
		return nil
	}

	return l.applyFrequency(ctx, mode)
}

func (l *Loop) Subscribe(fn func(ModeChange)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	l.subs = append(l.subs, fn)
}

func (l *Loop) notify(c ModeChange) {
	l.subsMu.Lock()
	subs := slices.Clone(l.subs)
	l.subsMu.Unlock()

	for _, fn := range subs {
		if err := safego.Call(func() error {
			fn(c)
			return nil
		}); err != nil {
			l.log.Warn().Err(err).Msg("Mode change subscriber failed")
		}
	}
}

// History returns the recent monitor snapshots, oldest first.
func (l *Loop) History() []sensors.Snapshot {
	return l.history.snapshots()
}

// WaitUntilSafe re-samples up to WaitRetries times, WaitCooldown apart,
// until the control temperature is below the comfort threshold.
func (l *Loop) WaitUntilSafe(ctx context.Context) (sensors.Snapshot, error) {
	var last sensors.Snapshot

	backoff := wait.Backoff{Duration: l.cfg.WaitCooldown, Factor: 1, Steps: l.cfg.WaitRetries}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		last = l.deps.Sampler.Sample(ctx)
		temp, ok := last.Temperature()
		if !ok {
			return false, nil
		}
		l.log.Debug().Float64("temp", temp).Float64("comfort", l.cfg.Thresholds.Comfort).Msg("Waiting for safe temperature")
		return temp < l.cfg.Thresholds.Comfort, nil
	})

	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, wait.ErrWaitTimeout):
		return last, errors.New().WithData(ErrStillUnsafe, l.cfg.WaitRetries)
	default:
		return last, err
	}
}

func (l *Loop) logTick(temp float64, prev Escalation, d Decision, snap sensors.Snapshot) {
	event := l.log.Debug()
	if d.Mode != prev.Mode || d.Band != prev.Band {
		event = l.log.Info()
	}

	event.
		Float64("temp", temp).
		Str("band", d.Band.String()).
		Str("mode", d.Mode.String()).
		Int("escalation", d.Counter).
		Int("nice", d.Nice).
		Bool("kill", d.Kill).
		Int("alerts", len(snap.Alerts)).
		Msg("Thermal tick")
}
