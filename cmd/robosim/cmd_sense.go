package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/injector"
	"github.com/zeusync/robosim/pkg/bridge"
)

func newSenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sense",
		Short: "Print the range reading at a pose",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			x, _ := cmd.Flags().GetFloat64("x")
			y, _ := cmd.Flags().GetFloat64("y")
			theta, _ := cmd.Flags().GetFloat64("theta")

			s, err := injector.InitializeSession(cfg)
			if err != nil {
				return err
			}
			pose := physics.NewPose(x, y, theta)
			s.ResetLog(pose)
			reading, err := s.Sense()
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(bridge.SenseResponse{Pose: pose, Reading: reading})
		},
	}
	cmd.Flags().String("map", "", "World file (.wrl)")
	cmd.Flags().Float64("x", 0, "Robot x in meters")
	cmd.Flags().Float64("y", 0, "Robot y in meters")
	cmd.Flags().Float64("theta", 0, "Robot heading in radians")
	return cmd
}
