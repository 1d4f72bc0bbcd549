// Package devices runs device state checks when check signals arrive.
package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
	"github.com/vshulcz/devpoll/internal/services/audit"
)

const defaultTimeout = 10 * time.Second

// Option customizes a Service.
type Option func(*Service)

// WithTimeout bounds a single check run.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithOnChecked registers a callback invoked with the stored states after each check.
func WithOnChecked(fn func(context.Context, []domain.DeviceState)) Option {
	return func(s *Service) {
		s.onChecked = fn
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service probes devices and keeps their last known state in a repository.
type Service struct {
	prober    ports.DeviceProber
	repo      ports.DeviceRepo
	onChecked func(context.Context, []domain.DeviceState)
	logger    *zap.Logger
	now       func() time.Time
	timeout   time.Duration

	requests chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	checkMu sync.Mutex
	stateMu sync.RWMutex
	last    time.Time
	// client address of the latest pending request
	pendingIP string
}

// New wires a prober and a repository into a Service.
func New(prober ports.DeviceProber, repo ports.DeviceRepo, opts ...Option) *Service {
	s := &Service{
		prober:   prober,
		repo:     repo,
		logger:   zap.NewNop(),
		now:      time.Now,
		timeout:  defaultTimeout,
		requests: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify requests a check. Requests arriving while one is pending are merged.
func (s *Service) Notify(ctx context.Context, _ domain.CheckSignal) error {
	if ip := audit.ClientIPFromContext(ctx); ip != "" {
		s.stateMu.Lock()
		s.pendingIP = ip
		s.stateMu.Unlock()
	}
	select {
	case s.requests <- struct{}{}:
	default:
	}
	return nil
}

// Start launches the worker that serves check requests until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-s.requests:
				s.stateMu.Lock()
				ip := s.pendingIP
				s.pendingIP = ""
				s.stateMu.Unlock()
				states, err := s.checkQueued(audit.WithClientIP(ctx, ip))
				if err != nil {
					s.logger.Warn("devices: check failed", zap.Error(err))
					continue
				}
				s.logger.Info("devices: check done", zap.Int("devices", len(states)))
			}
		}
	}()
}

// Stop halts the worker and waits for an in-flight check to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// CheckNow probes all devices, stores the result, and returns the stored states.
// Devices known from earlier checks but missing now are stored as offline.
// It fails with domain.ErrCheckInProgress while another check is running.
func (s *Service) CheckNow(ctx context.Context) ([]domain.DeviceState, error) {
	if !s.checkMu.TryLock() {
		return nil, domain.ErrCheckInProgress
	}
	defer s.checkMu.Unlock()
	return s.check(ctx)
}

// checkQueued serves a notified request: it waits for a running check to end
// instead of dropping the request.
func (s *Service) checkQueued(ctx context.Context) ([]domain.DeviceState, error) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.check(ctx)
}

func (s *Service) check(ctx context.Context) ([]domain.DeviceState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	found, err := s.prober.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe devices: %w", err)
	}
	prev, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous states: %w", err)
	}

	checkedAt := s.now().UTC()
	states := make([]domain.DeviceState, 0, len(found)+len(prev))
	seen := make(map[string]struct{}, len(found))
	for _, st := range found {
		if st.CheckedAt.IsZero() {
			st.CheckedAt = checkedAt
		}
		seen[st.ID] = struct{}{}
		states = append(states, st)
	}
	for _, old := range prev {
		if _, ok := seen[old.ID]; ok {
			continue
		}
		if old.Status != domain.StatusOffline {
			old.Status = domain.StatusOffline
			old.Detail = "not found by last check"
			old.CheckedAt = checkedAt
		}
		states = append(states, old)
	}

	if err := s.repo.UpsertMany(ctx, states); err != nil {
		return nil, fmt.Errorf("store states: %w", err)
	}

	s.stateMu.Lock()
	s.last = checkedAt
	s.stateMu.Unlock()

	if s.onChecked != nil {
		s.onChecked(ctx, states)
	}
	return states, nil
}

// List returns every known device state.
func (s *Service) List(ctx context.Context) ([]domain.DeviceState, error) {
	return s.repo.List(ctx)
}

// Get returns one device state or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.DeviceState, error) {
	return s.repo.Get(ctx, id)
}

// Ping checks the storage.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// LastCheck returns the time of the last successful check, zero if none.
func (s *Service) LastCheck() time.Time {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.last
}
