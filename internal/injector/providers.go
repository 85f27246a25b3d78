// Package injector builds the simulator runtime graph with google/wire.
package injector

import (
	"fmt"

	"github.com/google/wire"

	"github.com/zeusync/robosim/internal/config"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/internal/mapfile"
	"github.com/zeusync/robosim/internal/server"
)

// Source is the robot backend selected by the configuration. External is
// set only for an external source.
type Source struct {
	Provider session.Provider
	External *session.ExternalProvider
}

var (
	LoggerSet  = wire.NewSet(ProvideLogger, wire.Bind(new(log.Log), new(*log.Logger)))
	SessionSet = wire.NewSet(LoggerSet, bus.New, ProvideSession)
	ServerSet  = wire.NewSet(LoggerSet, bus.New, ProvideHub, ProvideSource, ProvideSession, ProvideWorker, ProvideServer)
)

// ProvideLogger builds the logger at the configured level.
func ProvideLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

// ProvideHub builds the websocket hub. Its send buffer follows the queue
// size.
func ProvideHub(cfg *config.Config, b bus.EventBus, logger log.Log) (*server.Hub, func(), error) {
	hub, err := server.NewHub(b, cfg.Server.QueueSize, logger)
	if err != nil {
		return nil, nil, err
	}
	return hub, func() { _ = hub.Close() }, nil
}

// ProvideSource selects the simulated or the external robot. The external
// robot receives its commands through the hub.
func ProvideSource(cfg *config.Config, hub *server.Hub) Source {
	if cfg.Source.Kind == config.SourceExternal {
		ext := session.NewExternalProvider(hub)
		return Source{Provider: ext, External: ext}
	}
	return Source{}
}

// ProvideSession builds the session and loads the configured map and
// objects files.
func ProvideSession(cfg *config.Config, src Source, b bus.EventBus, logger log.Log) (*session.Session, error) {
	scfg, err := cfg.Session()
	if err != nil {
		return nil, err
	}
	s, err := session.New(scfg, src.Provider, b, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Map.File != "" {
		w, err := mapfile.ParseFile(cfg.Map.File)
		if err != nil {
			return nil, err
		}
		env, err := w.Environment()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Map.File, err)
		}
		s.SetEnvironment(env)
	}
	if cfg.Map.Objects != "" {
		objs, err := mapfile.ParseObjectsFile(cfg.Map.Objects)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Map.Objects, err)
		}
		if err = s.LoadObjects(objs); err != nil {
			return nil, err
		}
	}
	if cfg.Run.MaxSteps > 0 || cfg.Run.Goal != nil {
		s.StartRun(cfg.Robot.Start, cfg.Run.MaxSteps, cfg.Run.GoalPoint())
	}
	return s, nil
}

func ProvideWorker(cfg *config.Config, s *session.Session, logger log.Log) *server.Worker {
	return server.NewWorker(s, cfg.Server.QueueSize, logger)
}

func ProvideServer(cfg *config.Config, w *server.Worker, hub *server.Hub, b bus.EventBus, src Source, s *session.Session, logger log.Log) *server.Server {
	return server.NewServer(server.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		StepTimeout:       cfg.Server.StepTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		QueueSize:         cfg.Server.QueueSize,
		Token:             cfg.Server.Token,
	}, server.Deps{
		Worker:   w,
		Hub:      hub,
		Bus:      b,
		External: src.External,
		Provider: s.Snapshot().Provider,
	}, logger)
}
