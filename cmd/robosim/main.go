package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/robosim/internal/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "robosim",
		Short: "2D kinematic mobile robot simulator",
		Long: `robosim simulates a differential robot in a polygonal world.

It steps the robot through turn/advance commands, casts range sensor beams
against the world's obstacles and replays recorded trajectories. The serve
command exposes a session over HTTP and websocket.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSenseCmd(),
		newServeCmd(),
		newErrtestCmd(),
	)
	return rootCmd
}

// loadConfig reads --config (or the defaults) and applies the global and
// the command's own overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.FromEnv()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if f := cmd.Flags().Lookup("map"); f != nil && f.Value.String() != "" {
		cfg.Map.File = f.Value.String()
	}
	if f := cmd.Flags().Lookup("objects"); f != nil && f.Value.String() != "" {
		cfg.Map.Objects = f.Value.String()
	}
	if f := cmd.Flags().Lookup("mode"); f != nil && f.Value.String() != "" {
		cfg.Motion.Mode = f.Value.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
