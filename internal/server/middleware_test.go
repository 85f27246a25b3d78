package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/pkg/bridge"
)

func TestRouteMetrics(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	code, _ := f.do(t, http.MethodGet, "/pose", "", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, http.MethodGet, "/sensors", "", nil)
	require.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/objects/ghost/grasp", "", nil)
	require.Equal(t, http.StatusNotFound, code)

	// metrics are recorded after the response is flushed
	var routes map[string]bridge.RouteMetrics
	require.Eventually(t, func() bool {
		code, body := f.do(t, http.MethodGet, "/healthz", "", nil)
		if code != http.StatusOK {
			return false
		}
		routes = decode[bridge.Health](t, body).Routes
		return routes["GET /pose"].Count == 1 &&
			routes["GET /sensors"].Count == 1 &&
			routes["POST /objects/{name}/grasp"].Count == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(1), routes["GET /pose"].Count)
	assert.Zero(t, routes["GET /pose"].Errors)
	assert.Equal(t, uint64(1), routes["GET /sensors"].Errors)
	assert.Equal(t, uint64(1), routes["POST /objects/{name}/grasp"].Errors)
}

func TestMetricsSnapshotAverages(t *testing.T) {
	m := newMetricsMiddleware()
	m.record("GET /pose", http.StatusOK, 10*time.Millisecond)
	m.record("GET /pose", http.StatusInternalServerError, 30*time.Millisecond)

	got := m.Snapshot()["GET /pose"]
	assert.Equal(t, bridge.RouteMetrics{Count: 2, Errors: 1, AvgTime: 20 * time.Millisecond}, got)
}

func TestAuthMiddleware(t *testing.T) {
	denied := 0
	m := &authMiddleware{
		token:   "secret",
		skipMap: map[string]struct{}{"/healthz": {}},
		onDeny: func(w http.ResponseWriter, _ *http.Request) {
			denied++
			w.WriteHeader(http.StatusUnauthorized)
		},
	}
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		target string
		auth   string
		want   int
	}{
		{"/healthz", "", http.StatusNoContent},
		{"/pose", "", http.StatusUnauthorized},
		{"/pose", "Bearer secret", http.StatusNoContent},
		{"/pose?token=wrong", "", http.StatusUnauthorized},
		{"/pose?token=secret", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.target)
	}
	assert.Equal(t, 2, denied)
}
