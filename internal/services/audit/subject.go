package audit

import (
	"go.uber.org/zap"

	"github.com/vshulcz/devpoll/pkg/observer"
)

// Observer receives audit events.
type Observer = observer.Observer[Event]

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc = observer.ObserverFunc[Event]

// Subject fans out check events to the audit sinks.
type Subject = observer.Subject[Event]

// NewSubject returns a subject whose delivery failures are logged at warn level.
// A failing sink never fails the check that produced the event.
func NewSubject(logger *zap.Logger, observers ...Observer) *Subject {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := observer.NewSubject[Event](observers...)
	s.SetErrorHandler(func(err error) {
		logger.Warn("audit delivery failed", zap.Error(err))
	})
	return s
}
