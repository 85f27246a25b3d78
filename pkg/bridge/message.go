// Package bridge defines the JSON documents exchanged with the simulator
// bridge over HTTP and websocket.
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/session"
)

// Websocket message types. Session events keep their event type
// (pose.updated, step.completed, ...).
const (
	TypeStep        = "step"
	TypeSense       = "sense"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeStepResult  = "step.result"
	TypeSenseResult = "sense.result"
	TypeCommand     = "command"
	TypeError       = "error"
)

// Message is one websocket frame. ID correlates a reply with its request.
type Message struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Meta  map[string]any  `json:"meta,omitempty"`
	Time  time.Time       `json:"time"`
}

// NewMessage encodes data into a message of type typ.
func NewMessage(typ, id string, data any) (Message, error) {
	msg := Message{Type: typ, ID: id, Time: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s: %w", typ, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// ErrorMessage builds an error reply to the request id.
func ErrorMessage(id string, err error) Message {
	return Message{Type: TypeError, ID: id, Error: err.Error(), Time: time.Now().UTC()}
}

// EventMessage converts a bus event into a message.
func EventMessage(e bus.Event) (Message, error) {
	msg, err := NewMessage(e.Type(), "", e.Data())
	if err != nil {
		return Message{}, err
	}
	msg.Meta = e.Metadata()
	msg.Time = e.Timestamp().UTC()
	return msg, nil
}

// Decode unmarshals the payload into v. An empty payload leaves v as is.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RunRequest starts a run. A nil Start keeps the current pose.
type RunRequest struct {
	Start    *physics.Pose `json:"start,omitempty"`
	MaxSteps int           `json:"max_steps,omitempty"`
	Goal     *Point        `json:"goal,omitempty"`
}

// GoalPoint returns the goal as a physics point, or nil.
func (r RunRequest) GoalPoint() *physics.Point {
	if r.Goal == nil {
		return nil
	}
	p := physics.Pt(r.Goal.X, r.Goal.Y)
	return &p
}

type RunResponse struct {
	RunID    string           `json:"run_id"`
	Snapshot session.Snapshot `json:"snapshot"`
}

type SenseResponse struct {
	Pose    physics.Pose   `json:"pose"`
	Reading sensor.Reading `json:"reading"`
}

type MapResponse struct {
	Name string `json:"name"`
	session.MapLoaded
}

// ExternalUpdate feeds the latest pose and, optionally, range reading of
// an external robot.
type ExternalUpdate struct {
	Pose    physics.Pose   `json:"pose"`
	Reading sensor.Reading `json:"reading,omitempty"`
}

type CalibrateRequest struct {
	Anchor physics.Pose `json:"anchor"`
}

type ReleaseResponse struct {
	Object   string           `json:"object"`
	Position Point            `json:"position"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// RouteMetrics counts the requests served by one route.
type RouteMetrics struct {
	Count   uint64        `json:"count"`
	Errors  uint64        `json:"errors"`
	AvgTime time.Duration `json:"avg_time_ns"`
}

type Health struct {
	Status   string                  `json:"status"`
	Clients  int                     `json:"clients"`
	Dropped  uint64                  `json:"dropped"`
	Bus      bus.EventBusMetrics     `json:"bus"`
	Provider string                  `json:"provider"`
	Routes   map[string]RouteMetrics `json:"routes,omitempty"`
}
