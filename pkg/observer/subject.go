// Package observer provides a generic fan-out of events to registered observers.
package observer

import (
	"context"
	"errors"
	"sync"
)

// Observer defines the callback contract for receiving published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a standalone function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify executes the wrapped function.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Subject coordinates observer registrations and event fan-out.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
	onError   func(error)
}

// NewSubject constructs a Subject with optional initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	cp := append([]Observer[T](nil), observers...)
	return &Subject[T]{observers: cp}
}

// Publish invokes every observer; failures go to the error handler.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}
	observers, errHandler := s.current()
	for _, obs := range observers {
		if err := obs.Notify(ctx, evt); err != nil && errHandler != nil {
			errHandler(err)
		}
	}
}

// Dispatch invokes every observer and returns their joined failures.
// Every observer is notified even when an earlier one fails.
func (s *Subject[T]) Dispatch(ctx context.Context, evt T) error {
	if s == nil {
		return nil
	}
	observers, _ := s.current()
	var errs []error
	for _, obs := range observers {
		if err := obs.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of attached observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Attach registers additional observers to the subject; nil observers are skipped.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil || len(observers) == 0 {
		return
	}
	s.mu.Lock()
	for _, obs := range observers {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
	s.mu.Unlock()
}

// SetErrorHandler configures a callback for observer failures in Publish.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *Subject[T]) current() ([]Observer[T], func(error)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Observer[T](nil), s.observers...), s.onError
}
