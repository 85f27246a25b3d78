package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/robosim/internal/core/errtest"
	"github.com/zeusync/robosim/internal/injector"
)

func newErrtestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errtest",
		Short: "Measure turn or advance error over repeated trials",
		Long: `Repeats one turn (--kind twist) or one advance (--kind advance) n times,
each trial from heading 0 at the start position, and prints the expected
and real values with their statistics as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			n, _ := cmd.Flags().GetInt("n")
			value, _ := cmd.Flags().GetFloat64("value")

			s, err := injector.InitializeSession(cfg)
			if err != nil {
				return err
			}

			var report errtest.Report
			switch kind {
			case "twist":
				report, err = errtest.Twist(cmd.Context(), s, cfg.Robot.Start, n, value)
			case "advance":
				report, err = errtest.Advance(cmd.Context(), s, cfg.Robot.Start, n, value)
			default:
				return fmt.Errorf("unknown kind %q (want twist or advance)", kind)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().String("kind", "twist", "twist or advance")
	cmd.Flags().Int("n", 10, "Number of trials")
	cmd.Flags().Float64("value", 0.5, "Turn angle in radians or advance distance in meters")
	cmd.Flags().String("map", "", "World file (.wrl)")
	cmd.Flags().String("mode", "", "Stepping mode: direct or animated")
	return cmd
}
