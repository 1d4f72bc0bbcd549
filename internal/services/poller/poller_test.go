package poller

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
)

type fakeSink struct {
	mu     sync.Mutex
	calls  []time.Time
	failAt func(n int) error
	onCall func(n int)
}

func (s *fakeSink) Dispatch(_ context.Context, _ domain.CheckSignal) error {
	s.mu.Lock()
	s.calls = append(s.calls, time.Now())
	n := len(s.calls)
	failAt, onCall := s.failAt, s.onCall
	s.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	if failAt != nil {
		return failAt(n)
	}
	return nil
}

func (s *fakeSink) snapshot() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}

type errRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errRecorder) handle(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *errRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func static(d time.Duration) ports.PollConfigProvider {
	return ports.PollConfigFunc(func(context.Context) (domain.PollConfig, error) {
		return domain.PollConfig{CheckDevicesInterval: d}, nil
	})
}

func runFor(t *testing.T, p *Poller, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(d + time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestPoller_Run_EmitsOnInterval(t *testing.T) {
	t.Parallel()

	const interval = 100 * time.Millisecond
	sink := &fakeSink{}
	rec := &errRecorder{}
	p := New(static(interval), sink, rec.handle)

	runFor(t, p, 350*time.Millisecond)

	calls := sink.snapshot()
	if n := len(calls); n < 3 || n > 4 {
		t.Fatalf("emissions=%d, want 3..4", n)
	}
	for i := 1; i < len(calls); i++ {
		if gap := calls[i].Sub(calls[i-1]); gap < interval {
			t.Fatalf("gap between emission %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
	if errs := rec.all(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p.Failures() != 0 {
		t.Fatalf("Failures=%d, want 0", p.Failures())
	}
}

func TestPoller_Run_SinkFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	sink := &fakeSink{failAt: func(n int) error {
		if n%2 == 0 {
			return errBoom
		}
		return nil
	}}
	rec := &errRecorder{}
	p := New(static(50*time.Millisecond), sink, rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("loop exited early: %v", err)
	default:
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	attempts := len(sink.snapshot())
	if attempts < 3 || attempts > 5 {
		t.Fatalf("attempts=%d, want about 4", attempts)
	}
	errs := rec.all()
	if want := attempts / 2; len(errs) != want {
		t.Fatalf("logged errors=%d, want %d (attempts=%d)", len(errs), want, attempts)
	}
	for _, err := range errs {
		if !errors.Is(err, errBoom) {
			t.Fatalf("logged error %v does not wrap boom", err)
		}
	}
}

func TestPoller_Run_FailedEmitStillWaitsInterval(t *testing.T) {
	t.Parallel()

	const interval = 40 * time.Millisecond
	sink := &fakeSink{failAt: func(int) error { return errors.New("down") }}
	p := New(static(interval), sink, func(error) {})

	runFor(t, p, 150*time.Millisecond)

	calls := sink.snapshot()
	if len(calls) < 2 {
		t.Fatalf("emissions=%d, want >= 2", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if gap := calls[i].Sub(calls[i-1]); gap < interval {
			t.Fatalf("failed emit shortened the wait: gap=%v", gap)
		}
	}
}

func TestPoller_Run_CancelAfterFirstEmit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{onCall: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	rec := &errRecorder{}
	p := New(static(10*time.Second), sink, rec.handle)

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Run took %v after cancellation", elapsed)
	}
	if n := len(sink.snapshot()); n != 1 {
		t.Fatalf("emissions=%d, want 1", n)
	}
	if errs := rec.all(); len(errs) != 0 {
		t.Fatalf("cancellation must not be reported, got %v", errs)
	}
}

func TestPoller_Run_ConfigFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider ports.PollConfigProvider
	}{
		{
			name: "provider_error",
			provider: ports.PollConfigFunc(func(context.Context) (domain.PollConfig, error) {
				return domain.PollConfig{}, errors.New("settings missing")
			}),
		},
		{
			name:     "negative_interval",
			provider: static(-time.Second),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sink := &fakeSink{}
			rec := &errRecorder{}
			p := New(tc.provider, sink, rec.handle)

			err := p.Run(context.Background())
			if !errors.Is(err, domain.ErrConfigUnavailable) {
				t.Fatalf("err=%v, want ErrConfigUnavailable", err)
			}
			if n := len(sink.snapshot()); n != 0 {
				t.Fatalf("emissions=%d, want 0", n)
			}
			if errs := rec.all(); len(errs) != 0 {
				t.Fatalf("config failure must not go to the handler, got %v", errs)
			}
		})
	}
}

func TestPoller_Run_SleepFailureContinues(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errClock := errors.New("clock hiccup")
	sink := &fakeSink{onCall: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	rec := &errRecorder{}
	p := New(static(time.Hour), sink, rec.handle, WithSleep(func(context.Context, time.Duration) error {
		return errClock
	}))

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := len(sink.snapshot()); n != 3 {
		t.Fatalf("emissions=%d, want 3", n)
	}
	errs := rec.all()
	if len(errs) != 3 {
		t.Fatalf("logged errors=%d, want 3", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, errClock) || !strings.Contains(err.Error(), "wait") {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func TestPoller_Run_RecoversPanics(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{onCall: func(n int) {
		switch n {
		case 1:
			panic("sink exploded")
		case 3:
			cancel()
		}
	}}
	rec := &errRecorder{}
	p := New(static(time.Millisecond), sink, rec.handle)

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := len(sink.snapshot()); n != 3 {
		t.Fatalf("emissions=%d, want 3", n)
	}
	errs := rec.all()
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "sink exploded") {
		t.Fatalf("errors=%v, want one panic error", errs)
	}
	if p.Iterations() != 3 || p.Failures() != 1 {
		t.Fatalf("iterations=%d failures=%d, want 3/1", p.Iterations(), p.Failures())
	}
}

func TestPoller_Run_ZeroIntervalStillCancellable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{onCall: func(n int) {
		if n == 50 {
			cancel()
		}
	}}
	p := New(static(0), sink, func(err error) { t.Errorf("unexpected error: %v", err) })

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := len(sink.snapshot()); n != 50 {
		t.Fatalf("emissions=%d, want 50", n)
	}
}

func TestPoller_Run_ClosedSinkDuringShutdownIsNotReported(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{
		failAt: func(int) error { return domain.ErrSinkClosed },
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	rec := &errRecorder{}
	p := New(static(time.Millisecond), sink, rec.handle)

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	errs := rec.all()
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrSinkClosed) {
		t.Fatalf("errors=%v, want only the closed sink seen before shutdown", errs)
	}
	if p.Failures() != 1 {
		t.Fatalf("Failures=%d, want 1", p.Failures())
	}
}

func TestPoller_Run_HandlerPanicDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{
		failAt: func(int) error { return errors.New("nope") },
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	p := New(static(time.Millisecond), sink, func(error) { panic("logger broke") })

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n := len(sink.snapshot()); n != 2 {
		t.Fatalf("emissions=%d, want 2", n)
	}
}

func TestLogErrors_WritesWarn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := LogErrors(zap.New(core))

	h(errors.New("dispatch failed"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("level=%v, want warn", entries[0].Level)
	}
	if got := entries[0].ContextMap()["error"]; got != "dispatch failed" {
		t.Fatalf("error field=%v", got)
	}

	LogErrors(nil)(errors.New("ignored"))
}

func TestNew_DefaultHandlerUsesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &fakeSink{
		failAt: func(n int) error {
			if n == 1 {
				return errors.New("unreachable")
			}
			return nil
		},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	p := New(static(time.Millisecond), sink, nil, WithLogger(zap.New(core)))
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if n := logs.FilterMessage("poller: iteration failed").Len(); n != 1 {
		t.Fatalf("warn entries=%d, want 1", n)
	}
	if logs.FilterMessage("poller: started").Len() != 1 || logs.FilterMessage("poller: stopped").Len() != 1 {
		t.Fatalf("missing lifecycle logs: %v", logs.All())
	}
}

func TestSleep(t *testing.T) {
	t.Parallel()

	t.Run("waits_full_duration", func(t *testing.T) {
		start := time.Now()
		if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
			t.Fatalf("Sleep: %v", err)
		}
		if time.Since(start) < 20*time.Millisecond {
			t.Fatal("Sleep returned early")
		}
	})

	t.Run("cancel_interrupts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		start := time.Now()
		err := Sleep(ctx, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v, want context.Canceled", err)
		}
		if time.Since(start) > time.Second {
			t.Fatal("Sleep ignored cancellation")
		}
	})

	t.Run("zero_duration", func(t *testing.T) {
		if err := Sleep(context.Background(), 0); err != nil {
			t.Fatalf("Sleep(0): %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
			t.Fatalf("Sleep(0) on cancelled ctx: %v", err)
		}
	})
}

func TestSleep_ZeroDurationYields(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	var ran atomic.Bool
	go ran.Store(true)
	for i := 0; i < 1000 && !ran.Load(); i++ {
		if err := Sleep(context.Background(), 0); err != nil {
			t.Fatalf("Sleep(0): %v", err)
		}
	}
	if !ran.Load() {
		t.Fatal("Sleep(0) never let a runnable goroutine in")
	}
}
