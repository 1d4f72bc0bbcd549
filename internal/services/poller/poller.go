// Package poller implements the periodic device-check trigger loop.
package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/misc"
	"github.com/vshulcz/devpoll/internal/ports"
)

// ErrorHandler receives every failure of a loop iteration.
// It must not block the loop for long.
type ErrorHandler func(error)

// SleepFunc suspends the loop for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Poller.
type Option func(*Poller)

// WithSleep replaces the wait primitive used between signals.
func WithSleep(fn SleepFunc) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// Poller emits one CheckSignal, waits the configured interval, and repeats until
// its context is cancelled.
type Poller struct {
	provider ports.PollConfigProvider
	sink     ports.Dispatcher
	onError  ErrorHandler
	sleep    SleepFunc
	logger   *zap.Logger

	iterations atomic.Uint64
	failures   atomic.Uint64
}

// New wires a config provider, a dispatch sink and an error handler into a Poller.
// A nil onError logs failures through the configured logger.
func New(provider ports.PollConfigProvider, sink ports.Dispatcher, onError ErrorHandler, opts ...Option) *Poller {
	p := &Poller{
		provider: provider,
		sink:     sink,
		onError:  onError,
		sleep:    Sleep,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.onError == nil {
		p.onError = LogErrors(p.logger)
	}
	return p
}

// LogErrors returns an ErrorHandler that writes failures to l at warn level.
func LogErrors(l *zap.Logger) ErrorHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return func(err error) {
		l.Warn("poller: iteration failed", zap.Error(err))
	}
}

// Sleep blocks for d and returns early with ctx.Err() when ctx is done.
// A non-positive d still yields the processor so a zero interval cannot starve
// other goroutines.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
	}
	return misc.Wait(ctx, d)
}

// Run reads the poll configuration once and loops until ctx is done.
// It returns an error only when the configuration cannot be obtained;
// cancellation ends the loop with a nil error.
// Emit and wait share one guard policy but are guarded separately, so a failed
// emit still waits out the interval before the next signal.
func (p *Poller) Run(ctx context.Context) error {
	cfg, err := p.provider.PollConfig(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfigUnavailable, err)
	}
	interval := cfg.CheckDevicesInterval
	if interval < 0 {
		return fmt.Errorf("%w: negative check devices interval %v", domain.ErrConfigUnavailable, interval)
	}

	p.logger.Info("poller: started", zap.Duration("interval", interval))
	wait := func(ctx context.Context) error {
		if err := p.sleep(ctx, interval); err != nil {
			return fmt.Errorf("wait %v: %w", interval, err)
		}
		return nil
	}
	for {
		if ctx.Err() != nil {
			p.logger.Info("poller: stopped",
				zap.Uint64("iterations", p.iterations.Load()),
				zap.Uint64("failures", p.failures.Load()),
			)
			return nil
		}
		p.iterations.Add(1)
		p.guard(ctx, p.emit)
		p.guard(ctx, wait)
	}
}

// Iterations returns how many signals the loop has tried to emit.
func (p *Poller) Iterations() uint64 {
	return p.iterations.Load()
}

// Failures returns how many emit or wait steps have failed.
func (p *Poller) Failures() uint64 {
	return p.failures.Load()
}

// guard runs one step of an iteration and hands any failure, panics included,
// to the error handler. Errors caused by ctx being done are not failures.
func (p *Poller) guard(ctx context.Context, step func(context.Context) error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("poller: panic: %v", r)
			}
		}()
		return step(ctx)
	}()
	if err = unlessCanceled(ctx, err); err == nil {
		return
	}
	p.failures.Add(1)
	p.report(err)
}

func (p *Poller) emit(ctx context.Context) error {
	if err := p.sink.Dispatch(ctx, domain.CheckSignal{}); err != nil {
		return fmt.Errorf("dispatch check signal: %w", err)
	}
	return nil
}

func (p *Poller) report(err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poller: error handler panicked", zap.Any("panic", r), zap.Error(err))
		}
	}()
	p.onError(err)
}

// unlessCanceled drops errors that only report the loop being torn down: ctx
// itself, or a sink closed by the same shutdown.
func unlessCanceled(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil && (errors.Is(err, cerr) || errors.Is(err, domain.ErrSinkClosed)) {
		return nil
	}
	return err
}
