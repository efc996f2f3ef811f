package main

import (
	"context"

	"codeberg.org/mutker/thermalctl/internal/command"
	"codeberg.org/mutker/thermalctl/internal/config"
	"codeberg.org/mutker/thermalctl/internal/gpu"
	"codeberg.org/mutker/thermalctl/internal/hardware"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/sensors"
	"codeberg.org/mutker/thermalctl/internal/sysfs"
	"codeberg.org/mutker/thermalctl/internal/thermal"
)

// app holds the components every subcommand needs. It is built once and
// owned by the subcommand that created it.
type app struct {
	fs         *sysfs.FS
	runner     command.Runner
	gpus       gpu.Manager
	profile    hardware.Profile
	thresholds thermal.Thresholds
	sensors    *sensors.Aggregator
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	a := &app{
		fs:     sysfs.New(cfg.Root, sysfs.DefaultTimeout),
		runner: command.Exec{},
	}

	// NVML is optional: machines without an NVIDIA driver still get
	// every other sensor and actuator.
	manager, err := gpu.New(logger.Component("gpu"))
	if err != nil {
		logger.Info().Err(err).Msg("NVML unavailable, continuing without NVIDIA GPU access")
	} else {
		a.gpus = manager
	}

	a.profile = hardware.NewDetector(a.fs, a.runner, logger.Component("hardware")).Detect(ctx)

	a.thresholds, err = thermal.Resolve(a.profile.ThermalMaxSafe, thermal.Thresholds{
		Comfort:   cfg.Comfort,
		Warning:   cfg.Warning,
		Critical:  cfg.Critical,
		Emergency: cfg.Emergency,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid threshold overrides, using hardware defaults")
	}

	a.sensors = sensors.NewAggregator(
		logger.Component("sensors"),
		a.thresholds.AlertLimits(),
		sensors.DefaultBackends(a.fs, a.runner, a.gpus),
	)

	logger.Debug().
		Str("cpu", a.profile.ModelName).
		Str("generation", a.profile.Generation.String()).
		Int("thermal_max_safe", a.profile.ThermalMaxSafe).
		Float64("comfort", a.thresholds.Comfort).
		Float64("warning", a.thresholds.Warning).
		Float64("critical", a.thresholds.Critical).
		Float64("emergency", a.thresholds.Emergency).
		Msg("Hardware detected")

	return a
}

func (a *app) Close() {
	if a.gpus == nil {
		return
	}
	if err := a.gpus.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down NVML")
	}
}
