package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/pkg/bridge"
)

const squareWRL = `; one block in a 5 x 5 world
( dimensions world 5 5 )
( polygon obstacle block 2 2 4 2 4 4 2 4 )
`

type fixture struct {
	url      string
	hub      *Hub
	external *session.ExternalProvider
}

type fixtureOptions struct {
	server   Config
	external bool
	session  func(*session.Config)
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	b := bus.New()
	hub, err := NewHub(b, 64, nil)
	require.NoError(t, err)

	scfg := session.DefaultConfig()
	scfg.Sensor = sensor.Config{Count: 1, MaxRange: 5}
	scfg.Start = physics.NewPose(1, 3, 0)
	if opts.session != nil {
		opts.session(&scfg)
	}

	var (
		ext      *session.ExternalProvider
		provider session.Provider
		name     = "simulated"
	)
	if opts.external {
		ext = session.NewExternalProvider(hub)
		provider, name = ext, ext.Name()
	}
	ss, err := session.New(scfg, provider, b, nil)
	require.NoError(t, err)

	worker := NewWorker(ss, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cfg := opts.server
	if cfg.Addr == "" {
		cfg = DefaultConfig()
	}
	srv := NewServer(cfg, Deps{Worker: worker, Hub: hub, Bus: b, External: ext, Provider: name}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = hub.Close()
		ts.Close()
		cancel()
		<-done
	})
	return &fixture{url: ts.URL, hub: hub, external: ext}
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.url+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	code, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)

	h := decode[bridge.Health](t, body)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "simulated", h.Provider)
	assert.Equal(t, uint64(1), h.Bus.SubscribersActive)
}

func TestSensorsNeedMap(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	code, _ := f.do(t, http.MethodGet, "/sensors", "", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body := f.do(t, http.MethodPut, "/map", squareWRL, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	m := decode[bridge.MapResponse](t, body)
	assert.Equal(t, "world", m.Name)
	assert.Equal(t, 1, m.Polygons)
	assert.NotZero(t, m.Fingerprint)

	code, body = f.do(t, http.MethodGet, "/sensors", "", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	r := decode[bridge.SenseResponse](t, body)
	require.Len(t, r.Reading, 1)
	assert.InDelta(t, 1.0, r.Reading[0], 1e-9)
	assert.Equal(t, physics.NewPose(1, 3, 0), r.Pose)
}

func TestStepAcceptsLenientCommands(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	code, body := f.do(t, http.MethodPost, "/step", `{"turn_angle":"abc","advance_distance":"0.5"}`, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	snap := decode[session.Snapshot](t, body)
	assert.True(t, snap.Pose.ApproxEqual(physics.NewPose(1.5, 3, 0), 1e-9), snap.Pose.String())
	assert.Equal(t, 1, snap.Commands)

	code, body = f.do(t, http.MethodPost, "/step", `{"turn_angle":1.5707963267948966}`, nil)
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = f.do(t, http.MethodPost, "/replay", "", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	replayed := decode[session.Snapshot](t, body)
	assert.True(t, replayed.Pose.ApproxEqual(physics.NewPose(1.5, 3, 1.5707963267948966), 1e-9), replayed.Pose.String())
	assert.Equal(t, 2, replayed.Commands)

	code, _ = f.do(t, http.MethodPost, "/step", `[1, 2]`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRejectedMapKeepsPrevious(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	code, body := f.do(t, http.MethodPut, "/map", squareWRL, nil)
	require.Equal(t, http.StatusOK, code)
	loaded := decode[bridge.MapResponse](t, body)

	cases := []struct {
		name string
		doc  string
		want int
	}{
		{"no dimensions", "( polygon obstacle a 0 0 1 0 1 1 )\n", http.StatusBadRequest},
		{"degenerate polygon", "( dimensions w 5 5 )\n( polygon obstacle a 0 0 1 1 )\n", http.StatusUnprocessableEntity},
		{"bad bounds", "( dimensions w 0 5 )\n", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodPut, "/map", tc.doc, nil)
			assert.Equal(t, tc.want, code, string(body))
			assert.NotEmpty(t, decode[bridge.ErrorResponse](t, body).Error)
		})
	}

	_, body = f.do(t, http.MethodGet, "/pose", "", nil)
	assert.Equal(t, loaded.Fingerprint, decode[session.Snapshot](t, body).MapFingerprint)
}

func TestSensorConfig(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	code, body := f.do(t, http.MethodPut, "/sensor", `{"count":1,"angular_range":1,"max_range":1}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, string(body))

	code, body = f.do(t, http.MethodPut, "/sensor", `{"count":3,"origin_angle":-0.7853,"angular_range":1.5708,"max_range":0.17}`, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, 3, decode[sensor.Config](t, body).Count)

	f.do(t, http.MethodPut, "/map", squareWRL, nil)
	_, body = f.do(t, http.MethodGet, "/sensors", "", nil)
	assert.Len(t, decode[bridge.SenseResponse](t, body).Reading, 3)
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	code, _ := f.do(t, http.MethodPost, "/run/stop", "", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body := f.do(t, http.MethodPost, "/run/start", `{"start":{"x":0.5,"y":0.5,"theta":0},"max_steps":2}`, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	run := decode[bridge.RunResponse](t, body)
	assert.NotEmpty(t, run.RunID)
	assert.True(t, run.Snapshot.RunActive)
	assert.Equal(t, physics.NewPose(0.5, 0.5, 0), run.Snapshot.Pose)

	for range 2 {
		code, body = f.do(t, http.MethodPost, "/step", `{"advance_distance":0.1}`, nil)
		require.Equal(t, http.StatusOK, code, string(body))
	}
	assert.False(t, decode[session.Snapshot](t, body).RunActive)

	code, _ = f.do(t, http.MethodPost, "/step", `{"advance_distance":0.1}`, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(t, http.MethodPost, "/run/start", `{"max_steps":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGraspAndRelease(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	code, body := f.do(t, http.MethodPut, "/objects", "; objects\ncan 1.04 3\nbox 4.5 4.5\n", nil)
	require.Equal(t, http.StatusOK, code, string(body))

	code, _ = f.do(t, http.MethodPost, "/objects/box/grasp", "", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/objects/nope/grasp", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(t, http.MethodPost, "/objects/can/grasp", "", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "can", decode[session.Snapshot](t, body).Holding)

	_, body = f.do(t, http.MethodGet, "/objects", "", nil)
	assert.Contains(t, string(body), "box")
	assert.NotContains(t, string(body), "can")

	code, body = f.do(t, http.MethodPost, "/objects/release", "", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	rel := decode[bridge.ReleaseResponse](t, body)
	assert.Equal(t, "can", rel.Object)
	assert.InDelta(t, 1.03, rel.Position.X, 1e-9)
	assert.InDelta(t, 3.0, rel.Position.Y, 1e-9)
	assert.Empty(t, rel.Snapshot.Holding)

	code, _ = f.do(t, http.MethodPost, "/objects/release", "", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestTokenRequired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token = "secret"
	f := newFixture(t, fixtureOptions{server: cfg})

	code, _ := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodGet, "/pose", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(t, http.MethodGet, "/pose", "", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(t, http.MethodGet, "/pose", "", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodGet, "/pose?token=secret", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestExternalRoutesNeedExternalSource(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	code, _ := f.do(t, http.MethodPost, "/external/update", `{"pose":{"x":1}}`, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/external/calibrate", `{}`, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestStepTimeoutLeavesPose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepTimeout = 50 * time.Millisecond
	f := newFixture(t, fixtureOptions{server: cfg, session: func(c *session.Config) {
		c.Motion.Mode = motion.ModeAnimated
		c.Motion.LinearStep = 1e-6
	}})

	code, _ := f.do(t, http.MethodPost, "/step", `{"advance_distance":1000}`, nil)
	assert.Equal(t, http.StatusGatewayTimeout, code)

	code, body := f.do(t, http.MethodGet, "/pose", "", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	snap := decode[session.Snapshot](t, body)
	assert.Equal(t, physics.NewPose(1, 3, 0), snap.Pose)
	assert.Zero(t, snap.Commands)
}

func TestServeStopsOnCancel(t *testing.T) {
	ss, err := session.New(session.DefaultConfig(), nil, nil, nil)
	require.NoError(t, err)
	hub, err := NewHub(nil, 4, nil)
	require.NoError(t, err)
	srv := NewServer(DefaultConfig(), Deps{Worker: NewWorker(ss, 4, nil), Hub: hub, Provider: "simulated"}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Post(url+"/step", "application/json", bytes.NewBufferString(`{"advance_distance":1}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	other, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(ctx, other), ErrServerAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
