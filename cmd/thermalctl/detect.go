package main

import (
	"fmt"

	"codeberg.org/mutker/thermalctl/internal/fan"
	"codeberg.org/mutker/thermalctl/internal/hardware"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the hardware profile and compatibility report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprint(out, hardware.Report(a.profile))
		fmt.Fprintf(out, "Thresholds:     comfort %.1f°C, warning %.1f°C, critical %.1f°C, emergency %.1f°C\n",
			a.thresholds.Comfort, a.thresholds.Warning, a.thresholds.Critical, a.thresholds.Emergency)

		fans := fan.NewActuator(a.fs, a.gpus, logger.Component("fan")).Discover(cmd.Context())
		if len(fans) == 0 {
			fmt.Fprintln(out, "Fans:           none controllable")
		}
		for _, f := range fans {
			fmt.Fprintf(out, "Fan:            %s (%s, manual mode: %t)\n", f.ID, f.Source, f.Enable != "" || f.Source == fan.SourceNVML)
		}

		return nil
	},
}
