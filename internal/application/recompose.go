package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when the recompose API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// RecomposeResult contains the result of a recompose operation.
type RecomposeResult struct {
	Members         int       `json:"members"`
	Errors          int       `json:"errors"`
	ComposedAt      time.Time `json:"composed_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// RecomposeService manages periodic recomposition of the catalog from
// its definition sources and the remote OGC services.
type RecomposeService struct {
	catalog  *CatalogService
	interval time.Duration
	logger   *slog.Logger

	// Lifecycle management
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for API triggers
	lastAPITrigger time.Time
	apiMutex       sync.Mutex

	// Prevents concurrent compose operations
	composeMutex sync.Mutex

	// Track next scheduled run for reporting
	nextRun time.Time
	nextMu  sync.RWMutex
}

// NewRecomposeService creates a new recompose service.
func NewRecomposeService(catalogService *CatalogService, interval time.Duration, logger *slog.Logger) *RecomposeService {
	return &RecomposeService{
		catalog:  catalogService,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		// Initialize to past time to allow immediate first API call
		lastAPITrigger: time.Now().Add(-31 * time.Second),
	}
}

// Start begins the periodic recompose scheduler.
func (s *RecomposeService) Start(ctx context.Context) {
	s.logger.Info("starting recompose service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main recompose loop.
func (s *RecomposeService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextRun(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("recompose service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("recompose service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled recompose triggered")
			s.doCompose(ctx)
			s.setNextRun(time.Now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the recompose service.
func (s *RecomposeService) Stop() {
	s.logger.Info("stopping recompose service")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerRecompose manually triggers a recompose with rate limiting.
// Returns ErrRateLimited if called more than 2 times per minute.
func (s *RecomposeService) TriggerRecompose(ctx context.Context) (RecomposeResult, error) {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	// Rate limit: 30 seconds cooldown (allows ~2 requests per minute)
	if time.Since(s.lastAPITrigger) < 30*time.Second {
		return RecomposeResult{}, ErrRateLimited
	}
	s.lastAPITrigger = time.Now()

	return s.doComposeWithResult(ctx)
}

// doCompose performs the recompose without returning detailed results.
func (s *RecomposeService) doCompose(ctx context.Context) {
	s.composeMutex.Lock()
	defer s.composeMutex.Unlock()

	stats, err := s.catalog.Compose(ctx)
	if err != nil {
		s.logger.Error("recompose failed", "error", err)
		return
	}
	s.logger.Info("recompose completed",
		"members", stats.Members,
		"errors", stats.Errors,
	)
}

// doComposeWithResult performs the recompose and returns detailed results.
func (s *RecomposeService) doComposeWithResult(ctx context.Context) (RecomposeResult, error) {
	s.composeMutex.Lock()
	defer s.composeMutex.Unlock()

	stats, err := s.catalog.Compose(ctx)
	if err != nil {
		return RecomposeResult{}, err
	}

	return RecomposeResult{
		Members:         stats.Members,
		Errors:          stats.Errors,
		ComposedAt:      s.catalog.ComposedAt(),
		NextScheduledAt: s.getNextRun(),
	}, nil
}

// setNextRun updates the next scheduled run time.
func (s *RecomposeService) setNextRun(t time.Time) {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	s.nextRun = t
}

// getNextRun returns the next scheduled run time.
func (s *RecomposeService) getNextRun() time.Time {
	s.nextMu.RLock()
	defer s.nextMu.RUnlock()
	return s.nextRun
}

// Interval returns the recompose interval.
func (s *RecomposeService) Interval() time.Duration {
	return s.interval
}
