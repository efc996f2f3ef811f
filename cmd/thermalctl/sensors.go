package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sensorsJSON bool

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Sample every sensor backend once and print the readings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(cmd.Context(), cfg)
		defer a.Close()

		snap := a.sensors.Sample(cmd.Context())
		out := cmd.OutOrStdout()

		if sensorsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tCHIP\tLABEL\tVALUE\tSOURCE")
		for _, r := range snap.Readings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f %s\t%s\n", r.Kind, r.Chip, r.Label, r.Value, r.Unit, r.Source)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if temp, ok := snap.Temperature(); ok {
			fmt.Fprintf(out, "\nControl temperature: %.1f°C (band %s)\n", temp, a.thresholds.Band(temp))
		} else {
			fmt.Fprintln(out, "\nControl temperature: unavailable")
		}
		for _, alert := range snap.Alerts {
			fmt.Fprintln(out, "ALERT:", alert)
		}

		return nil
	},
}

func init() {
	sensorsCmd.Flags().BoolVar(&sensorsJSON, "json", false, "Print the snapshot as JSON")
}
