package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/fan"
	"codeberg.org/mutker/thermalctl/internal/frequency"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/metrics"
	"codeberg.org/mutker/thermalctl/internal/pid"
	"codeberg.org/mutker/thermalctl/internal/process"
	"codeberg.org/mutker/thermalctl/internal/sensors"
	"codeberg.org/mutker/thermalctl/internal/telemetry"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/spf13/cobra"
)

const cleanupTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the thermal control daemon",
	RunE:  runDaemon,
}

// daemon is everything cleanup has to put back.
type daemon struct {
	app       *app
	loop      *thermal.Loop
	frequency *frequency.Actuator
	fans      *fan.Actuator
	trail     metrics.Collector
	telemetry telemetry.Collector
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if err := pid.Write(cfg.PIDDir); err != nil {
		if coded, ok := errors.AsCoded(err); ok {
			logger.ErrorWithCode(coded).Str("pid_file", pid.Path(cfg.PIDDir)).Msg("Cannot start daemon")
		}
		return err
	}
	defer func() {
		if err := pid.Remove(cfg.PIDDir); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(cancel)

	d, err := newDaemon(ctx)
	if err != nil {
		return err
	}
	defer d.cleanup()

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging thermal status...")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = d.loop.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = d.loop.RunMonitor(ctx)
	}()
	wg.Wait()

	return nil
}

func newDaemon(ctx context.Context) (*daemon, error) {
	initial := thermal.ModeBalanced
	if cfg.Mode != "" {
		m, err := frequency.ParseMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		initial = m
	}

	a := newApp(ctx, cfg)
	d := &daemon{
		app:       a,
		frequency: frequency.NewActuator(a.profile, a.fs, a.runner, logger.Component("frequency")),
		fans:      fan.NewActuator(a.fs, a.gpus, logger.Component("fan")),
	}
	d.fans.Discover(ctx)

	trail, err := metrics.NewService(metrics.Config{
		Path:          cfg.TrailPath,
		MaxEntries:    cfg.TrailMax,
		FlushInterval: cfg.TrailFlush,
		Enabled:       cfg.TrailPath != "",
	}, logger.Component("metrics"))
	if err != nil {
		a.Close()
		return nil, err
	}
	d.trail = trail

	// The exporter starts before the loop exists; /status and /history
	// answer empty until the loop is stored.
	source := &loopSource{}
	exp, err := telemetry.NewService(telemetry.Config{
		Listen:          cfg.MetricsListen,
		ShutdownTimeout: 5 * time.Second,
	}, source, logger.Component("telemetry"))
	if err != nil {
		_ = trail.Close()
		a.Close()
		return nil, err
	}
	d.telemetry = exp

	throttler := process.NewThrottler(process.NewHost(a.fs), logger.Component("process"))

	d.loop = thermal.New(thermal.Config{
		Thresholds: a.thresholds,
		FanTiers: thermal.FanTiers{
			Low:    cfg.FanLow,
			Medium: cfg.FanMedium,
			High:   cfg.FanHigh,
			Max:    cfg.FanMax,
		},
		Patterns:        cfg.Patterns,
		ThermalInterval: cfg.ThermalInterval,
		MonitorInterval: cfg.MonitorInterval,
		Backoff:         cfg.Backoff,
		ActuationRetry:  cfg.ActuationRetry,
		WaitRetries:     cfg.WaitRetries,
		WaitCooldown:    cfg.WaitCooldown,
		HistorySize:     cfg.HistorySize,
		MonitorOnly:     cfg.Monitor,
		AutoFan:         cfg.AutoFan,
		InitialMode:     initial,
	}, thermal.Dependencies{
		Sampler:   a.sensors,
		Frequency: d.frequency,
		Fans:      d.fans,
		Processes: throttler,
		Recorders: []thermal.Recorder{trail, exp},
	}, logger.Component("thermal"))
	source.loop.Store(d.loop)

	d.loop.Subscribe(func(c thermal.ModeChange) {
		logger.Info().
			Str("from", c.From.String()).
			Str("to", c.To.String()).
			Str("band", c.Band.String()).
			Str("reason", c.Reason).
			Msg("Power mode changed")
	})

	return d, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// cleanup hands fans back to firmware control and lifts the frequency cap.
func (d *daemon) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	var errs []error
	if !cfg.Monitor {
		if err := d.fans.RestoreAuto(ctx); err != nil {
			errs = append(errs, errors.New().Wrap(errors.ErrRestoreFans, err))
		}
		if _, err := d.frequency.SetFrequency(ctx, d.frequency.Profile().MaxMHz); err != nil {
			errs = append(errs, errors.New().Wrap(errors.ErrRestoreFreq, err))
		}
	}
	if err := d.trail.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.telemetry.Close(); err != nil {
		errs = append(errs, err)
	}
	d.app.Close()

	if err := errors.Join(errs...); err != nil {
		logger.Error().Err(err).Msg("Cleanup incomplete")
	}
	logger.Info().Msg("Exiting...")
}

type loopSource struct {
	loop atomic.Pointer[thermal.Loop]
}

func (s *loopSource) GetStatus() thermal.Status {
	if l := s.loop.Load(); l != nil {
		return l.GetStatus()
	}
	return thermal.Status{}
}

func (s *loopSource) History() []sensors.Snapshot {
	if l := s.loop.Load(); l != nil {
		return l.History()
	}
	return nil
}
