package server

import (
	"context"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/pkg/bridge"
)

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return f.hub.Clients() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

// readUntil reads messages until one of type typ arrives and returns every
// message read.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []bridge.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got []bridge.Message
	for {
		var msg bridge.Message
		require.NoError(t, conn.ReadJSON(&msg))
		got = append(got, msg)
		if msg.Type == typ {
			return got
		}
	}
}

func types(msgs []bridge.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestWebSocketStepStreamsEvents(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	conn := dial(t, f)

	req, err := bridge.NewMessage(bridge.TypeStep, "1", motion.Command{AdvanceDistance: 0.5})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	msgs := readUntil(t, conn, bridge.TypeStepResult)
	assert.Equal(t, []string{
		session.EventPoseUpdated,
		session.EventPoseUpdated,
		session.EventStepCompleted,
		bridge.TypeStepResult,
	}, types(msgs))

	var final session.PoseUpdated
	require.NoError(t, msgs[1].Decode(&final))
	assert.True(t, final.Final)

	reply := msgs[len(msgs)-1]
	assert.Equal(t, "1", reply.ID)
	var snap session.Snapshot
	require.NoError(t, reply.Decode(&snap))
	assert.True(t, snap.Pose.ApproxEqual(physics.NewPose(1.5, 3, 0), 1e-9), snap.Pose.String())
}

func TestWebSocketErrors(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	conn := dial(t, f)

	require.NoError(t, conn.WriteJSON(bridge.Message{Type: "fly", ID: "a"}))
	msgs := readUntil(t, conn, bridge.TypeError)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "a", last.ID)
	assert.Contains(t, last.Error, "fly")

	// no map loaded yet
	require.NoError(t, conn.WriteJSON(bridge.Message{Type: bridge.TypeSense, ID: "b"}))
	msgs = readUntil(t, conn, bridge.TypeError)
	assert.Equal(t, "b", msgs[len(msgs)-1].ID)

	require.NoError(t, conn.WriteJSON(bridge.Message{Type: bridge.TypePing, ID: "c"}))
	msgs = readUntil(t, conn, bridge.TypePong)
	assert.Equal(t, "c", msgs[len(msgs)-1].ID)
}

func TestHubSendWithoutClients(t *testing.T) {
	hub, err := NewHub(nil, 1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, hub.Send(context.Background(), motion.Command{}), ErrNoClients)
}

// TestExternalRobotOverWebSocket drives an external session: the robot
// listens for command messages on the socket and feeds its new pose back to
// the provider.
func TestExternalRobotOverWebSocket(t *testing.T) {
	f := newFixture(t, fixtureOptions{external: true})
	robot := dial(t, f)

	raw := physics.NewPose(10, 10, math.Pi/2)
	code, body := f.do(t, http.MethodPost, "/external/update", `{"pose":{"x":10,"y":10,"theta":1.5707963267948966},"reading":[0.3]}`, nil)
	require.Equal(t, http.StatusNoContent, code, string(body))
	code, body = f.do(t, http.MethodPost, "/external/calibrate", `{"anchor":{"x":1,"y":1,"theta":0}}`, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	calibrated := decode[physics.Pose](t, body)
	assert.True(t, calibrated.ApproxEqual(physics.NewPose(1, 1, 0), 1e-9), calibrated.String())

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		for {
			var msg bridge.Message
			if err := robot.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != bridge.TypeCommand {
				continue
			}
			var cmd motion.Command
			if err := msg.Decode(&cmd); err != nil {
				return
			}
			theta := raw.Theta + cmd.TurnAngle
			raw = physics.Pose{
				X:     raw.X + cmd.AdvanceDistance*math.Cos(theta),
				Y:     raw.Y + cmd.AdvanceDistance*math.Sin(theta),
				Theta: theta,
			}
			f.external.Update(raw, nil)
			return
		}
	}()

	code, body = f.do(t, http.MethodPost, "/step", `{"advance_distance":0.5}`, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	snap := decode[session.Snapshot](t, body)
	assert.Equal(t, "external", snap.Provider)
	assert.True(t, snap.Pose.ApproxEqual(physics.NewPose(1.5, 1, 0), 1e-9), snap.Pose.String())
	<-driverDone
}
