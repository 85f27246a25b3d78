//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/robosim/internal/config"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/internal/server"
)

// InitializeSession builds a simulated session for the command line tools.
func InitializeSession(cfg *config.Config) (*session.Session, error) {
	wire.Build(SessionSet, wire.Value(Source{}))
	return nil, nil
}

// InitializeServer builds the bridge server and everything behind it.
func InitializeServer(cfg *config.Config) (*server.Server, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}
