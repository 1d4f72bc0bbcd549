package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	auditfile "github.com/vshulcz/devpoll/internal/adapters/audit/file"
	remoteaudit "github.com/vshulcz/devpoll/internal/adapters/audit/remote"
	"github.com/vshulcz/devpoll/internal/adapters/persistence/file"
	memrepo "github.com/vshulcz/devpoll/internal/adapters/repository/memory"
	pgrepo "github.com/vshulcz/devpoll/internal/adapters/repository/postgres"
	"github.com/vshulcz/devpoll/internal/config"
	"github.com/vshulcz/devpoll/internal/misc"
	"github.com/vshulcz/devpoll/internal/ports"
	"github.com/vshulcz/devpoll/internal/services/audit"
)

// buildRepoAndPersister prefers Postgres and falls back to memory with a file snapshot.
// The returned closer releases the database handle, if any.
func buildRepoAndPersister(ctx context.Context, cfg config.DispatcherConfig, logger *zap.Logger) (ports.DeviceRepo, ports.Persister, func()) {
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err == nil {
			op := func() error {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
				return pgrepo.Migrate(ctx, db)
			}
			if err = misc.Retry(ctx, misc.DefaultBackoff, pgrepo.IsRetryable, op); err == nil {
				logger.Info("db connected & migrated")
				return pgrepo.New(db), nil, func() { _ = db.Close() }
			}
			_ = db.Close()
		}
		logger.Warn("postgres init failed, falling back to memory", zap.Error(err))
	}

	repo := memrepo.New()
	p := file.New(cfg.File)
	if cfg.Restore {
		if err := p.Restore(ctx, repo); err != nil {
			logger.Warn("restore failed", zap.Error(err))
		} else {
			logger.Info("restore ok", zap.String("file", cfg.File))
		}
	}
	return repo, p, func() {}
}

// saveSnapshot writes every known device state through p.
func saveSnapshot(ctx context.Context, repo ports.DeviceRepo, p ports.Persister) error {
	items, err := repo.List(ctx)
	if err != nil {
		return err
	}
	return p.Save(ctx, items)
}

// buildAudit attaches the configured audit sinks. Without any the subject is a no-op.
func buildAudit(cfg config.DispatcherConfig, logger *zap.Logger) (*audit.Subject, func(), error) {
	subject := audit.NewSubject(logger)
	closer := func() {}
	if cfg.AuditFile != "" {
		w := auditfile.New(cfg.AuditFile)
		subject.Attach(w)
		closer = func() { _ = w.Close() }
	}
	if cfg.AuditURL != "" {
		c, err := remoteaudit.New(cfg.AuditURL, &http.Client{Timeout: 5 * time.Second}, cfg.Key)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("init audit client: %w", err)
		}
		subject.Attach(c)
	}
	return subject, closer, nil
}
