// Package postgres implements a Postgres-backed device state repository.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/misc"
	"github.com/vshulcz/devpoll/internal/ports"
)

// Repo persists device states in Postgres with retryable operations.
type Repo struct {
	db *sql.DB
}

var _ ports.DeviceRepo = (*Repo)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

const (
	qGet    = `SELECT id, kind, status, detail, checked_at FROM devices WHERE id=$1`
	qList   = `SELECT id, kind, status, detail, checked_at FROM devices ORDER BY id`
	qUpsert = `
INSERT INTO devices (id, kind, status, detail, checked_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id)
DO UPDATE SET kind=EXCLUDED.kind, status=EXCLUDED.status, detail=EXCLUDED.detail,
              checked_at=EXCLUDED.checked_at, updated_at=now();`
)

// New returns a Postgres-backed repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(s scanner) (domain.DeviceState, error) {
	var (
		st           domain.DeviceState
		kind, status string
	)
	if err := s.Scan(&st.ID, &kind, &status, &st.Detail, &st.CheckedAt); err != nil {
		return domain.DeviceState{}, err
	}
	st.Kind = domain.DeviceKind(kind)
	st.Status = domain.DeviceStatus(status)
	st.CheckedAt = st.CheckedAt.UTC()
	return st, nil
}

// Get reads a single device state by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.DeviceState, error) {
	var st domain.DeviceState
	op := func() error {
		var err error
		st, err = scanState(r.db.QueryRowContext(ctx, qGet, id))
		return err
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DeviceState{}, domain.ErrNotFound
		}
		return domain.DeviceState{}, err
	}
	return st, nil
}

// List loads every stored device state ordered by ID. Rows that fail to scan are skipped.
func (r *Repo) List(ctx context.Context) ([]domain.DeviceState, error) {
	var result []domain.DeviceState
	op := func() error {
		rows, err := r.db.QueryContext(ctx, qList)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		out := make([]domain.DeviceState, 0)
		for rows.Next() {
			st, err := scanState(rows)
			if err != nil {
				continue
			}
			out = append(out, st)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = out
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertMany atomically stores a batch of device states inside a transaction.
func (r *Repo) UpsertMany(ctx context.Context, items []domain.DeviceState) error {
	if len(items) == 0 {
		return nil
	}

	attempt := func() error {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, it := range items {
			if it.ID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, qUpsert,
				it.ID, string(it.Kind), string(it.Status), it.Detail, it.CheckedAt.UTC()); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

// Ping verifies the database connection using a short-lived context.
func (r *Repo) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return r.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
