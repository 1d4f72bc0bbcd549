// Package local dispatches check signals inside the process through a buffered channel.
package local

import (
	"context"
	"sync"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
)

// Sink queues signals without blocking the sender.
type Sink struct {
	ch     chan domain.CheckSignal
	mu     sync.RWMutex
	closed bool
}

var _ ports.Dispatcher = (*Sink)(nil)

// New returns a Sink holding up to buffer undelivered signals.
func New(buffer int) *Sink {
	if buffer < 1 {
		buffer = 1
	}
	return &Sink{ch: make(chan domain.CheckSignal, buffer)}
}

// Dispatch enqueues sig. It fails with domain.ErrSinkFull when the buffer is full
// and domain.ErrSinkClosed after Close.
func (s *Sink) Dispatch(_ context.Context, sig domain.CheckSignal) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrSinkClosed
	}
	select {
	case s.ch <- sig:
		return nil
	default:
		return domain.ErrSinkFull
	}
}

// Signals returns the queue consumers read from. It is closed by Close.
func (s *Sink) Signals() <-chan domain.CheckSignal {
	return s.ch
}

// Close stops accepting signals. Already queued signals stay readable.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Forward hands every queued signal to next until ctx is done or the sink is closed.
// Delivery failures are passed to onError when it is set.
func Forward(ctx context.Context, s *Sink, next ports.Dispatcher, onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-s.Signals():
			if !ok {
				return
			}
			if err := next.Dispatch(ctx, sig); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
