// Package server exposes a simulation session over HTTP and websocket.
//
// The session is owned by a single Worker goroutine. HTTP handlers and
// websocket readers never touch it directly: they submit operations through
// the worker's command channel and wait for the reply, so a session is
// never shared between goroutines.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/session"
)

// Server serves the bridge API.
type Server struct {
	// Core components
	worker   *Worker
	hub      *Hub
	bus      bus.EventBus
	external *session.ExternalProvider
	router   *mux.Router
	metrics  *metricsMiddleware

	// Server state
	provider string
	running  atomic.Bool

	// Configuration and logging
	config Config
	logger log.Log
}

// Config holds server configuration
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	// StepTimeout bounds every request that runs on the session worker.
	StepTimeout     time.Duration
	ShutdownTimeout time.Duration
	// QueueSize is the capacity of the worker command channel and of each
	// websocket client's send buffer.
	QueueSize int
	// Token, when set, is required as a bearer token or ?token= on every
	// route except /healthz.
	Token string
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		StepTimeout:       30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		QueueSize:         64,
	}
}

// Deps are the collaborators of a Server. External is nil unless the
// session is driven by an external robot; Bus may be nil.
type Deps struct {
	Worker   *Worker
	Hub      *Hub
	Bus      bus.EventBus
	External *session.ExternalProvider
	Provider string
}

// NewServer wires the routes.
func NewServer(cfg Config, deps Deps, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Server{
		worker:   deps.Worker,
		hub:      deps.Hub,
		bus:      deps.Bus,
		external: deps.External,
		provider: deps.Provider,
		metrics:  newMetricsMiddleware(),
		config:   cfg,
		logger:   logger.With(log.String("component", "server")),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler without starting the worker.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the session worker and the HTTP server on ln until ctx is done
// or either of them fails, then shuts both down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		_ = ln.Close()
		return ErrServerAlreadyRunning
	}

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.worker.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		_ = s.hub.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.logger.Info("Server stopped")
	return err
}
