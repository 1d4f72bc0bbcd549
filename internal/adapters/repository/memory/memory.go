// Package memory implements an in-memory device state repository.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
)

// Repo keeps device states in memory with coarse-grained RW locking.
type Repo struct {
	items map[string]domain.DeviceState
	mu    sync.RWMutex
}

var _ ports.DeviceRepo = (*Repo)(nil)

// New returns an empty in-memory repository.
func New() *Repo {
	return &Repo{items: make(map[string]domain.DeviceState)}
}

// Get returns the last stored state of a device or domain.ErrNotFound.
func (r *Repo) Get(_ context.Context, id string) (domain.DeviceState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.items[id]
	if !ok {
		return domain.DeviceState{}, domain.ErrNotFound
	}
	return st, nil
}

// List returns a copy of all states ordered by device ID.
func (r *Repo) List(_ context.Context) ([]domain.DeviceState, error) {
	r.mu.RLock()
	out := make([]domain.DeviceState, 0, len(r.items))
	for _, st := range r.items {
		out = append(out, st)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertMany replaces the stored state of every device in items.
func (r *Repo) UpsertMany(_ context.Context, items []domain.DeviceState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range items {
		if st.ID == "" {
			continue
		}
		r.items[st.ID] = st
	}
	return nil
}

// Ping reports that the in-memory store is not backed by a real database.
func (*Repo) Ping(context.Context) error {
	return errors.New("db not configured")
}
