package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/internal/core/world"
	"github.com/zeusync/robosim/internal/mapfile"
)

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrWorkerStopped        = errors.New("session worker is not running")
	ErrQueueFull            = errors.New("session queue is full")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrNoExternalSource     = errors.New("session is not fed by an external source")
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidMessage),
		errors.Is(err, mapfile.ErrMalformed),
		errors.Is(err, mapfile.ErrNoDimensions),
		errors.Is(err, mapfile.ErrOddCoordinates):
		return http.StatusBadRequest
	case errors.Is(err, world.ErrDegeneratePolygon),
		errors.Is(err, world.ErrInvalidBounds),
		errors.Is(err, sensor.ErrInsufficientSensors),
		errors.Is(err, sensor.ErrInvalidRange),
		errors.Is(err, motion.ErrInvalidStep):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoEnvironment),
		errors.Is(err, session.ErrNoSensorConfig),
		errors.Is(err, session.ErrRunNotActive),
		errors.Is(err, session.ErrStepLimitReached),
		errors.Is(err, session.ErrAlreadyHolding),
		errors.Is(err, session.ErrNotHolding),
		errors.Is(err, session.ErrObjectTooFar),
		errors.Is(err, session.ErrDuplicateObject),
		errors.Is(err, session.ErrNoExternalPose),
		errors.Is(err, session.ErrNoExternalRange),
		errors.Is(err, session.ErrReadingMismatch),
		errors.Is(err, ErrNoExternalSource):
		return http.StatusConflict
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrWorkerStopped), errors.Is(err, ErrServerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this.
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
