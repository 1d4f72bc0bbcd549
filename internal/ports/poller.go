package ports

import (
	"context"

	"github.com/vshulcz/devpoll/internal/domain"
)

// PollConfigProvider supplies the poll configuration once at loop start.
type PollConfigProvider interface {
	PollConfig(ctx context.Context) (domain.PollConfig, error)
}

// Dispatcher accepts check signals. Implementations should not block for long.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig domain.CheckSignal) error
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ctx context.Context, sig domain.CheckSignal) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, sig domain.CheckSignal) error {
	return f(ctx, sig)
}

// DeviceProber inspects the devices visible to this host.
type DeviceProber interface {
	Probe(ctx context.Context) ([]domain.DeviceState, error)
}

// PollConfigFunc adapts a plain function to PollConfigProvider.
type PollConfigFunc func(ctx context.Context) (domain.PollConfig, error)

// PollConfig calls f.
func (f PollConfigFunc) PollConfig(ctx context.Context) (domain.PollConfig, error) {
	return f(ctx)
}
