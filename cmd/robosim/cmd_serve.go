package main

import (
	"github.com/spf13/cobra"

	"github.com/zeusync/robosim/internal/injector"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a session over HTTP and websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			srv, cleanup, err := injector.InitializeServer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().String("map", "", "World file (.wrl)")
	cmd.Flags().String("objects", "", "Objects file")
	cmd.Flags().String("mode", "", "Stepping mode: direct or animated")
	return cmd
}
