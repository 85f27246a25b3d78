package session

import "errors"

var (
	ErrNoEnvironment    = errors.New("no environment loaded")
	ErrNoSensorConfig   = errors.New("no sensor configuration")
	ErrRunNotActive     = errors.New("run not active")
	ErrStepLimitReached = errors.New("step limit reached")

	ErrObjectNotFound  = errors.New("object not found")
	ErrDuplicateObject = errors.New("duplicate object name")
	ErrAlreadyHolding  = errors.New("already holding an object")
	ErrObjectTooFar    = errors.New("object out of reach")
	ErrNotHolding      = errors.New("not holding an object")

	ErrNoCommandSink   = errors.New("no command sink")
	ErrNoExternalPose  = errors.New("no external pose received")
	ErrNoExternalRange = errors.New("no external range reading received")
	ErrReadingMismatch = errors.New("external reading does not match sensor configuration")
)
