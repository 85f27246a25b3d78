package server

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/pkg/bridge"
)

// statusRecorder captures the response status. It forwards Hijack so
// websocket upgrades keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return r.Method + " " + tpl
		}
	}
	return r.Method + " " + r.URL.Path
}

// authMiddleware requires the configured token, taken from a bearer
// Authorization header or the token query parameter.
type authMiddleware struct {
	token   string
	skipMap map[string]struct{}
	onDeny  func(w http.ResponseWriter, r *http.Request)
}

func (m *authMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := m.skipMap[r.URL.Path]; skip || m.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.URL.Query().Get("token")
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			m.onDeny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs every handled request at debug level.
type loggingMiddleware struct {
	logger log.Log
}

func (m *loggingMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.logger.Debug("Request handled",
			log.String("route", routeName(r)),
			log.Int("status", rec.status),
			log.Duration("duration", time.Since(start)),
			log.String("remote_addr", r.RemoteAddr),
		)
	})
}

type routeMetrics struct {
	count     uint64
	errors    uint64
	totalTime time.Duration
}

// metricsMiddleware counts requests, failures and time per route.
type metricsMiddleware struct {
	mu     sync.Mutex
	routes map[string]*routeMetrics
}

func newMetricsMiddleware() *metricsMiddleware {
	return &metricsMiddleware{routes: make(map[string]*routeMetrics)}
}

func (m *metricsMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.record(routeName(r), rec.status, time.Since(start))
	})
}

func (m *metricsMiddleware) record(route string, status int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.routes[route]
	if !ok {
		rm = &routeMetrics{}
		m.routes[route] = rm
	}
	rm.count++
	rm.totalTime += d
	if status >= http.StatusBadRequest {
		rm.errors++
	}
}

// Snapshot returns the collected metrics keyed by "METHOD /template".
func (m *metricsMiddleware) Snapshot() map[string]bridge.RouteMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bridge.RouteMetrics, len(m.routes))
	for route, rm := range m.routes {
		avg := time.Duration(0)
		if rm.count > 0 {
			avg = rm.totalTime / time.Duration(rm.count)
		}
		out[route] = bridge.RouteMetrics{Count: rm.count, Errors: rm.errors, AvgTime: avg}
	}
	return out
}
