package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/internal/core/world"
	"github.com/zeusync/robosim/internal/mapfile"
	"github.com/zeusync/robosim/pkg/bridge"
)

const maxBodySize = 4 << 20

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	auth := &authMiddleware{
		token:   s.config.Token,
		skipMap: map[string]struct{}{"/healthz": {}},
		onDeny:  func(w http.ResponseWriter, r *http.Request) { s.writeError(w, r, ErrUnauthorized) },
	}
	r.Use(s.metrics.Middleware, (&loggingMiddleware{logger: s.logger}).Middleware, auth.Middleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/pose", s.handlePose).Methods(http.MethodGet)
	r.HandleFunc("/sensors", s.handleSensors).Methods(http.MethodGet)
	r.HandleFunc("/step", s.handleStep).Methods(http.MethodPost)
	r.HandleFunc("/replay", s.handleReplay).Methods(http.MethodPost)
	r.HandleFunc("/run/start", s.handleRunStart).Methods(http.MethodPost)
	r.HandleFunc("/run/stop", s.handleRunStop).Methods(http.MethodPost)
	r.HandleFunc("/map", s.handleMap).Methods(http.MethodPut)
	r.HandleFunc("/sensor", s.handleSensor).Methods(http.MethodPut)
	r.HandleFunc("/objects", s.handleObjects).Methods(http.MethodGet)
	r.HandleFunc("/objects", s.handleLoadObjects).Methods(http.MethodPut)
	r.HandleFunc("/objects/release", s.handleRelease).Methods(http.MethodPost)
	r.HandleFunc("/objects/{name}/grasp", s.handleGrasp).Methods(http.MethodPost)
	r.HandleFunc("/external/update", s.handleExternalUpdate).Methods(http.MethodPost)
	r.HandleFunc("/external/calibrate", s.handleExternalCalibrate).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	return r
}

// opContext bounds a request that runs on the worker.
func (s *Server) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.config.StepTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.config.StepTimeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := bridge.Health{
		Status:   "ok",
		Clients:  s.hub.Clients(),
		Dropped:  s.hub.Dropped(),
		Provider: s.provider,
		Routes:   s.metrics.Snapshot(),
	}
	if s.bus != nil {
		h.Bus = s.bus.GetMetrics()
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	snap, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (session.Snapshot, error) {
		return ss.Snapshot(), nil
	})
	s.reply(w, r, snap, err)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	resp, err := call(ctx, s.worker, sense)
	s.reply(w, r, resp, err)
}

func sense(_ context.Context, ss *session.Session) (bridge.SenseResponse, error) {
	reading, err := ss.Sense()
	if err != nil {
		return bridge.SenseResponse{}, err
	}
	return bridge.SenseResponse{Pose: ss.Pose(), Reading: reading}, nil
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var cmd motion.Command
	if err := decodeBody(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	snap, err := call(ctx, s.worker, step(cmd))
	s.reply(w, r, snap, err)
}

func step(cmd motion.Command) func(context.Context, *session.Session) (session.Snapshot, error) {
	return func(ctx context.Context, ss *session.Session) (session.Snapshot, error) {
		if _, err := ss.Step(ctx, cmd); err != nil {
			return session.Snapshot{}, err
		}
		return ss.Snapshot(), nil
	}
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	snap, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (session.Snapshot, error) {
		ss.ReplayLast()
		return ss.Snapshot(), nil
	})
	s.reply(w, r, snap, err)
}

func (s *Server) handleRunStart(w http.ResponseWriter, r *http.Request) {
	var req bridge.RunRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.MaxSteps < 0 {
		s.writeError(w, r, fmt.Errorf("%w: max_steps must be non-negative", ErrInvalidMessage))
		return
	}
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	resp, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (bridge.RunResponse, error) {
		start := ss.Pose()
		if req.Start != nil {
			start = *req.Start
		}
		id := ss.StartRun(start, req.MaxSteps, req.GoalPoint())
		return bridge.RunResponse{RunID: id, Snapshot: ss.Snapshot()}, nil
	})
	s.reply(w, r, resp, err)
}

func (s *Server) handleRunStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	snap, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (session.Snapshot, error) {
		if err := ss.StopRun(); err != nil {
			return session.Snapshot{}, err
		}
		return ss.Snapshot(), nil
	})
	s.reply(w, r, snap, err)
}

// handleMap accepts a .wrl document. The map is parsed and validated before
// it reaches the worker.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	parsed, err := mapfile.Parse(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	env, err := parsed.Environment()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	resp, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (bridge.MapResponse, error) {
		ss.SetEnvironment(env)
		return bridge.MapResponse{
			Name: parsed.Name,
			MapLoaded: session.MapLoaded{
				Width:       env.Width(),
				Height:      env.Height(),
				Polygons:    env.Len(),
				Fingerprint: env.Fingerprint(),
			},
		}, nil
	})
	s.reply(w, r, resp, err)
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	var cfg sensor.Config
	if err := decodeBody(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	resp, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (sensor.Config, error) {
		if err := ss.SetSensorConfig(cfg); err != nil {
			return sensor.Config{}, err
		}
		return cfg, nil
	})
	s.reply(w, r, resp, err)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	objs, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) ([]world.Object, error) {
		return ss.Objects(), nil
	})
	s.reply(w, r, objs, err)
}

// handleLoadObjects accepts an objects file ("name x y" per line).
func (s *Server) handleLoadObjects(w http.ResponseWriter, r *http.Request) {
	objs, err := mapfile.ParseObjects(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	loaded, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) ([]world.Object, error) {
		if err := ss.LoadObjects(objs); err != nil {
			return nil, err
		}
		return ss.Objects(), nil
	})
	s.reply(w, r, loaded, err)
}

func (s *Server) handleGrasp(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	snap, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (session.Snapshot, error) {
		if err := ss.Grasp(name); err != nil {
			return session.Snapshot{}, err
		}
		return ss.Snapshot(), nil
	})
	s.reply(w, r, snap, err)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	resp, err := call(ctx, s.worker, func(_ context.Context, ss *session.Session) (bridge.ReleaseResponse, error) {
		obj, err := ss.Release()
		if err != nil {
			return bridge.ReleaseResponse{}, err
		}
		return bridge.ReleaseResponse{
			Object:   obj.Name,
			Position: bridge.Point{X: obj.Position.X, Y: obj.Position.Y},
			Snapshot: ss.Snapshot(),
		}, nil
	})
	s.reply(w, r, resp, err)
}

// handleExternalUpdate feeds the external provider directly. It must not go
// through the worker, which may be blocked in a step waiting for it.
func (s *Server) handleExternalUpdate(w http.ResponseWriter, r *http.Request) {
	if s.external == nil {
		s.writeError(w, r, ErrNoExternalSource)
		return
	}
	var upd bridge.ExternalUpdate
	if err := decodeBody(r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.external.Update(upd.Pose, upd.Reading)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExternalCalibrate(w http.ResponseWriter, r *http.Request) {
	if s.external == nil {
		s.writeError(w, r, ErrNoExternalSource)
		return
	}
	var req bridge.CalibrateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.external.Calibrate(req.Anchor); err != nil {
		s.writeError(w, r, err)
		return
	}
	pose, err := s.external.Pose()
	s.reply(w, r, pose, err)
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	fields := []log.Field{
		log.String("method", r.Method),
		log.String("path", r.URL.Path),
		log.Int("status", status),
		log.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", fields...)
	} else {
		s.logger.Debug("Request rejected", fields...)
	}
	writeJSON(w, status, bridge.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
