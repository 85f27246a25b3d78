// Package trajectory records the commands of a run so that the final pose
// can be reproduced from the recorded start pose.
package trajectory

import (
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
)

// Log is an ordered record of commands applied from a known start pose.
// It is not safe for concurrent use.
type Log struct {
	start    physics.Pose
	commands []motion.Command
}

// NewLog returns an empty log starting at start.
func NewLog(start physics.Pose) *Log {
	return &Log{start: start.Normalized()}
}

// Start returns the recorded start pose.
func (l *Log) Start() physics.Pose { return l.start }

// Len returns the number of recorded commands.
func (l *Log) Len() int { return len(l.commands) }

// Append records c.
func (l *Log) Append(c motion.Command) {
	l.commands = append(l.commands, c)
}

// Commands returns a copy of the recorded commands in order.
func (l *Log) Commands() []motion.Command {
	out := make([]motion.Command, len(l.commands))
	copy(out, l.commands)
	return out
}

// Reset clears the log and sets a new start pose.
func (l *Log) Reset(start physics.Pose) {
	l.start = start.Normalized()
	l.commands = l.commands[:0]
}

// Replay reapplies every recorded command to the start pose with direct
// updates and returns the resulting pose. Animated stepping ends on the
// same pose, so the result does not depend on the mode used while
// recording.
func (l *Log) Replay(in *motion.Integrator) physics.Pose {
	p := l.start
	for _, c := range l.commands {
		p = in.Direct(p, c)
	}
	return p
}
