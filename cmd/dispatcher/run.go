package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vshulcz/devpoll/internal/adapters/http/ginserver"
	"github.com/vshulcz/devpoll/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/devpoll/internal/adapters/probe/host"
	"github.com/vshulcz/devpoll/internal/config"
	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
	"github.com/vshulcz/devpoll/internal/services/audit"
	"github.com/vshulcz/devpoll/internal/services/devices"
	"github.com/vshulcz/devpoll/pkg/buildinfo"
)

const shutdownTimeout = 5 * time.Second

// Swapped in tests.
var (
	newProber = func() ports.DeviceProber { return host.New() }
	newLogger = func() (*zap.Logger, error) { return zap.NewProduction() }
	onListen  = func(net.Addr) {}
)

func run(ctx context.Context, args []string, out io.Writer, build buildinfo.Info) error {
	if out == nil {
		out = io.Discard
	}
	build.Print(out)

	cfg, err := config.LoadDispatcherConfig(args, out)
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("build", build.Fields()...)
	gin.SetMode(gin.ReleaseMode)

	repo, persister, closeRepo := buildRepoAndPersister(ctx, cfg, logger)
	defer closeRepo()

	auditSubject, closeAudit, err := buildAudit(cfg, logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	saveOnCheck := persister != nil && cfg.StoreInterval == 0
	onChecked := func(ctx context.Context, items []domain.DeviceState) {
		if saveOnCheck {
			if err := persister.Save(ctx, items); err != nil {
				logger.Warn("save failed", zap.Error(err))
			}
		}
		auditSubject.Publish(ctx, audit.NewEvent(time.Now(), items, audit.ClientIPFromContext(ctx)))
	}
	opts := []devices.Option{
		devices.WithTimeout(cfg.CheckTimeout),
		devices.WithLogger(logger),
		devices.WithOnChecked(onChecked),
	}
	svc := devices.New(newProber(), repo, opts...)
	svc.Start(ctx)
	defer svc.Stop()

	if persister != nil && cfg.StoreInterval > 0 {
		go saveEvery(ctx, cfg.StoreInterval, repo, persister, logger)
	}

	r := ginserver.NewRouter(ginserver.NewHandler(svc), logger,
		middlewares.ZapLogger(logger),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
		middlewares.HashSHA256(cfg.Key),
	)

	logger.Info("dispatcher config",
		zap.String("addr", cfg.Address),
		zap.String("file", cfg.File),
		zap.Duration("store_interval", cfg.StoreInterval),
		zap.Duration("check_timeout", cfg.CheckTimeout),
		zap.Bool("restore", cfg.Restore),
		zap.Bool("db", cfg.DSN != ""),
	)

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address, err)
	}
	onListen(ln.Addr())

	err = serve(ctx, &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}, ln, logger)

	if persister != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := saveSnapshot(saveCtx, repo, persister); serr != nil {
			logger.Warn("final save failed", zap.Error(serr))
		}
	}
	return err
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatcher listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("dispatcher stopped")
	return nil
}

func saveEvery(ctx context.Context, every time.Duration, repo ports.DeviceRepo, p ports.Persister, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := saveSnapshot(ctx, repo, p); err != nil {
				logger.Warn("periodic save failed", zap.Error(err))
			}
		}
	}
}
