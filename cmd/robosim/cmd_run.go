package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/internal/injector"
)

// replayTolerance bounds the drift between a run and its replay.
const replayTolerance = 1e-9

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step the robot through a commands file",
		Long: `Loads the world, applies every "turn advance" line of the commands
file and prints one JSON snapshot per step. The recorded log is then
replayed from the start pose and must end at the same pose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("commands")
			cmds, err := readCommandsFile(path)
			if err != nil {
				return err
			}
			s, err := injector.InitializeSession(cfg)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, c := range cmds {
				if _, err := s.Step(cmd.Context(), c); err != nil {
					if errors.Is(err, session.ErrStepLimitReached) {
						fmt.Fprintf(cmd.ErrOrStderr(), "step limit reached after %d commands\n", i)
						break
					}
					return fmt.Errorf("command %d: %w", i+1, err)
				}
				if err := enc.Encode(s.Snapshot()); err != nil {
					return err
				}
			}

			final := s.Pose()
			replayed := s.ReplayLast()
			if !replayed.ApproxEqual(final, replayTolerance) {
				return fmt.Errorf("replay ended at %v, run ended at %v", replayed, final)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d commands to %v\n", len(s.Commands()), replayed)
			return nil
		},
	}
	cmd.Flags().String("map", "", "World file (.wrl)")
	cmd.Flags().String("objects", "", "Objects file")
	cmd.Flags().String("commands", "", `Commands file, one "turn advance" pair per line`)
	cmd.Flags().String("mode", "", "Stepping mode: direct or animated")
	_ = cmd.MarkFlagRequired("commands")
	return cmd
}

func readCommandsFile(path string) ([]motion.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCommands(f)
}

// readCommands parses "turn advance" lines. Blank lines and lines starting
// with # or ; are skipped; a missing or malformed value is 0.
func readCommands(r io.Reader) ([]motion.Command, error) {
	var cmds []motion.Command
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || strings.HasPrefix(fields[0], ";") {
			continue
		}
		advance := ""
		if len(fields) > 1 {
			advance = fields[1]
		}
		cmds = append(cmds, motion.ParseCommand(fields[0], advance))
	}
	return cmds, sc.Err()
}
