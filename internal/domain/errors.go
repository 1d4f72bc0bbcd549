package domain

import "errors"

var (
	// ErrNotFound is returned when the requested device does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConfigUnavailable wraps failures to obtain a usable poll configuration.
	ErrConfigUnavailable = errors.New("poll config unavailable")
	// ErrSinkFull is returned by buffered sinks that cannot accept another signal.
	ErrSinkFull = errors.New("dispatch sink full")
	// ErrSinkClosed is returned when dispatching to a closed sink.
	ErrSinkClosed = errors.New("dispatch sink closed")
	// ErrCheckInProgress reports that a device check is already running.
	ErrCheckInProgress = errors.New("device check in progress")
	// ErrUnknownSignal indicates an unsupported signal type on the wire.
	ErrUnknownSignal = errors.New("unknown signal type")
)
