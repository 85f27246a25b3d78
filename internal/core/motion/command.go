package motion

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Command turns the robot in place by TurnAngle radians, then advances
// AdvanceDistance meters along the new heading.
type Command struct {
	TurnAngle       float64 `json:"turn_angle" yaml:"turn_angle"`
	AdvanceDistance float64 `json:"advance_distance" yaml:"advance_distance"`
}

// IsZero reports whether the command neither turns nor advances.
func (c Command) IsZero() bool { return c.TurnAngle == 0 && c.AdvanceDistance == 0 }

// ParseCommand builds a Command from text fields. Anything that is not a
// finite number becomes 0.
func ParseCommand(turn, advance string) Command {
	return Command{TurnAngle: ParseValue(turn), AdvanceDistance: ParseValue(advance)}
}

// ParseValue parses s as a finite float, falling back to 0.
func ParseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// UnmarshalJSON accepts numbers or numeric strings for both fields. Values
// that are neither become 0 instead of failing the whole command.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw struct {
		TurnAngle       json.RawMessage `json:"turn_angle"`
		AdvanceDistance json.RawMessage `json:"advance_distance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.TurnAngle = lenient(raw.TurnAngle)
	c.AdvanceDistance = lenient(raw.AdvanceDistance)
	return nil
}

func lenient(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return ParseValue(s)
	}
	return ParseValue(string(raw))
}
