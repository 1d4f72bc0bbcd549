package ports

import (
	"context"

	"github.com/vshulcz/devpoll/internal/domain"
)

type DeviceRepo interface {
	Get(ctx context.Context, id string) (domain.DeviceState, error)
	List(ctx context.Context) ([]domain.DeviceState, error)
	UpsertMany(ctx context.Context, items []domain.DeviceState) error

	Ping(ctx context.Context) error
}

type Persister interface {
	Save(ctx context.Context, items []domain.DeviceState) error
	Restore(ctx context.Context, repo DeviceRepo) error
}
