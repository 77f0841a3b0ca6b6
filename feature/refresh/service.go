package refresh

import (
	"context"
	"sync"
	"time"

	"gamedata-sync/core/synchronizer"

	"go.uber.org/zap"
)

// Syncer is the part of the synchronizer driven over HTTP.
type Syncer interface {
	Refresh(ctx context.Context, trigger string) error
	CheckForUpdate(ctx context.Context) (bool, error)
	Status() synchronizer.Status
}

// Service starts syncs on request and keeps background runs tied to its own lifetime.
type Service struct {
	syncer  Syncer
	logger  *zap.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new refresh service. timeout bounds background runs; zero
// leaves them unbounded.
func NewService(syncer Syncer, logger *zap.Logger, timeout time.Duration) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run syncs and waits for the outcome.
func (s *Service) Run(ctx context.Context) error {
	return s.syncer.Refresh(ctx, synchronizer.TriggerAPI)
}

// Start syncs in the background. Joining an in-flight run is handled by the
// synchronizer.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if err := s.syncer.Refresh(ctx, synchronizer.TriggerAPI); err != nil {
			s.logger.Error("Background sync failed", zap.Error(err))
		}
	}()
}

// Check reports whether the upstream revision changed.
func (s *Service) Check(ctx context.Context) (bool, error) {
	return s.syncer.CheckForUpdate(ctx)
}

// Status reports the synchronizer status.
func (s *Service) Status() synchronizer.Status {
	return s.syncer.Status()
}

// Close cancels background runs and waits for them.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
