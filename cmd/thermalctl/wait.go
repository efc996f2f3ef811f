package main

import (
	"fmt"

	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/spf13/cobra"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until the machine is below the comfort threshold",
	Long: `wait re-samples the sensors up to wait-retries times, wait-cooldown
apart, and exits non-zero when the temperature never drops below the
comfort threshold. Nothing is actuated.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		loop := thermal.New(thermal.Config{
			Thresholds:   a.thresholds,
			WaitRetries:  cfg.WaitRetries,
			WaitCooldown: cfg.WaitCooldown,
			MonitorOnly:  true,
		}, thermal.Dependencies{Sampler: a.sensors}, logger.Component("thermal"))

		snap, err := loop.WaitUntilSafe(cmd.Context())
		if temp, ok := snap.Temperature(); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Temperature: %.1f°C (comfort below %.1f°C)\n", temp, a.thresholds.Comfort)
		}

		return err
	},
}

func init() {
	waitCmd.Flags().Int("wait-retries", thermal.DefaultWaitRetries, "Maximum number of re-checks")
	waitCmd.Flags().Duration("wait-cooldown", thermal.DefaultWaitCooldown, "Pause between re-checks")
}
