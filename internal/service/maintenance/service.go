package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// CleanupInterval is how often the periodic sweep runs
	CleanupInterval time.Duration

	// PartialMaxAge is the age after which a partial file is considered
	// abandoned by a crashed process
	PartialMaxAge time.Duration

	// HistoryMaxAge is the maximum age of run history before pruning
	HistoryMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		CleanupInterval: time.Hour,
		PartialMaxAge:   24 * time.Hour,
		HistoryMaxAge:   30 * 24 * time.Hour,
	}
}

// Service sweeps abandoned partial files and prunes old run history
type Service struct {
	config  *Config
	store   port.ArtifactStore
	history port.HistoryRepository
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service. history may be nil.
func New(cfg *Config, store port.ArtifactStore, history port.HistoryRepository, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.PartialMaxAge == 0 {
		cfg.PartialMaxAge = 24 * time.Hour
	}
	if cfg.HistoryMaxAge == 0 {
		cfg.HistoryMaxAge = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:  cfg,
		store:   store,
		history: history,
		logger:  logger,
	}
}

// RunOnce performs a single sweep
func (s *Service) RunOnce() {
	s.cleanupPartials()
	s.cleanupHistory()
}

// Start runs the periodic sweep until ctx is done or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Debug("Maintenance service started",
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Debug("Maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// maintenanceLoop handles periodic maintenance tasks
func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			s.RunOnce()
		}
	}
}

// cleanupPartials removes partial files left behind by a crashed process
func (s *Service) cleanupPartials() {
	count, err := s.store.CleanStalePartials(s.config.PartialMaxAge)
	if err != nil {
		s.logger.Error("Failed to clean stale partial files", zap.Error(err))
	} else if count > 0 {
		s.logger.Info("Cleaned stale partial files", zap.Int("count", count))
	}
}

// cleanupHistory prunes old run history
func (s *Service) cleanupHistory() {
	if s.history == nil {
		return
	}
	count, err := s.history.CleanupOldRuns(s.config.HistoryMaxAge)
	if err != nil {
		s.logger.Error("Failed to prune run history", zap.Error(err))
	} else if count > 0 {
		s.logger.Info("Pruned run history", zap.Int("count", count))
	}
}
