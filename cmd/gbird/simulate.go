package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ent0n29/gbird/internal/telemetry"
)

func newSimulateCmd() *cobra.Command {
	var (
		steps   int
		seed    uint64
		battery int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Step the telemetry simulator and print each refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be > 0")
			}
			initial := telemetry.DefaultState()
			if cmd.Flags().Changed("battery") {
				initial.BatteryPercent = battery
			}
			var opts []telemetry.Option
			if seed != 0 {
				opts = append(opts, telemetry.WithSeed(seed))
			}
			sim := telemetry.NewSimulator(initial, opts...)
			return runSimulation(cmd.OutOrStdout(), sim, steps, asJSON)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 10, "Number of refreshes")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().IntVar(&battery, "battery", 78, "Starting battery percent")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per refresh")
	return cmd
}

func runSimulation(out io.Writer, sim *telemetry.Simulator, steps int, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		for i := 0; i < steps; i++ {
			if err := enc.Encode(sim.Refresh()); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tBATT\tRESERVE\tDIST\tUPTIME\tHDG\tSAFETY\tEVENT")
	for i := 1; i <= steps; i++ {
		res := sim.Refresh()
		st := res.State
		event := ""
		if res.EmergencyActivated {
			event = fmt.Sprintf("emergency +%d%%", res.Boost)
		}
		fmt.Fprintf(tw, "%d\t%d%%\t%d%%\t%dm\t%dmin\t%.0fdeg\t%s\t%s\n",
			i, st.BatteryPercent, st.ReservePercent, st.DistanceMeters, st.UptimeMinutes,
			st.HeadingDegrees, telemetry.SafetyFlag(st.BatteryPercent), event)
	}
	return tw.Flush()
}
