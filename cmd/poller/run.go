package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/devpoll/internal/adapters/dispatch/httpjson"
	"github.com/vshulcz/devpoll/internal/adapters/dispatch/local"
	"github.com/vshulcz/devpoll/internal/adapters/probe/host"
	"github.com/vshulcz/devpoll/internal/adapters/repository/memory"
	"github.com/vshulcz/devpoll/internal/config"
	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
	"github.com/vshulcz/devpoll/internal/services/devices"
	"github.com/vshulcz/devpoll/internal/services/poller"
	"github.com/vshulcz/devpoll/pkg/buildinfo"
	"github.com/vshulcz/devpoll/pkg/observer"
)

// One quick retry for transient dispatcher errors; the loop itself handles the rest.
var dispatchBackoff = []time.Duration{100 * time.Millisecond}

// newProber is swapped in tests.
var newProber = func() ports.DeviceProber { return host.New() }

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, args []string, out io.Writer, build buildinfo.Info) error {
	if out == nil {
		out = io.Discard
	}
	build.Print(out)

	cfg, err := config.LoadPollerConfig(args, out)
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("build", build.Fields()...)

	sink, cleanup, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("poller config",
		zap.String("sink", cfg.Sink),
		zap.String("dispatch_address", cfg.DispatchAddress),
		zap.Duration("check_devices_interval", cfg.CheckDevicesInterval),
		zap.Duration("dispatch_timeout", cfg.DispatchTimeout),
		zap.Bool("signed", cfg.Key != ""),
	)

	p := poller.New(cfg, sink, nil, poller.WithLogger(logger))
	return p.Run(ctx)
}

// buildSink returns the dispatcher for cfg.Sink and a cleanup that releases it.
func buildSink(ctx context.Context, cfg config.PollerConfig, logger *zap.Logger) (ports.Dispatcher, func(), error) {
	switch cfg.Sink {
	case config.SinkLocal:
		return buildLocalSink(ctx, logger), func() {}, nil
	default:
		client, err := httpjson.New(cfg.DispatchAddress,
			&http.Client{Timeout: cfg.DispatchTimeout},
			cfg.Key,
			httpjson.WithBackoff(dispatchBackoff),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init dispatch client: %w", err)
		}
		return client, func() {}, nil
	}
}

// buildLocalSink runs device checks in-process: signals queue in a local sink and
// are fanned out to a devices service backed by the host prober.
func buildLocalSink(ctx context.Context, logger *zap.Logger) ports.Dispatcher {
	svc := devices.New(newProber(), memory.New(),
		devices.WithLogger(logger),
		devices.WithOnChecked(func(_ context.Context, states []domain.DeviceState) {
			for _, st := range states {
				if st.Status != domain.StatusOnline {
					logger.Warn("device not online",
						zap.String("id", st.ID),
						zap.String("status", string(st.Status)),
						zap.String("detail", st.Detail),
					)
				}
			}
		}),
	)

	subject := observer.NewSubject[domain.CheckSignal](observer.ObserverFunc[domain.CheckSignal](svc.Notify))
	sink := local.New(1)

	svc.Start(ctx)
	go func() {
		local.Forward(ctx, sink, ports.DispatcherFunc(subject.Dispatch), func(err error) {
			logger.Warn("local dispatch failed", zap.Error(err))
		})
		sink.Close()
		svc.Stop()
	}()
	return sink
}
