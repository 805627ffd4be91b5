// Package retention runs the scheduled retention purge: on every tick it purges
// events older than the configured max age in bounded, rate-limited batches.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/fact-history/services/history"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Purger is the slice of the history service the job drives
type Purger interface {
	PurgeOlderThan(ctx context.Context, olderThan int64, memorySpaceID string, limit int) (*history.PurgeResult, error)
}

// Config holds configuration for the retention job
type Config struct {
	Interval         time.Duration // time between runs
	MaxAge           time.Duration // events older than now-MaxAge are purged
	BatchSize        int           // events per purge call
	BatchesPerSecond float64       // pacing between purge calls
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Interval:         time.Hour,
		MaxAge:           90 * 24 * time.Hour,
		BatchSize:        history.DefaultPurgeLimit,
		BatchesPerSecond: 2,
	}
}

// Service owns the background retention loop
type Service struct {
	purger  Purger
	logger  *zap.Logger
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex

	runs         int
	lastRun      time.Time
	lastDeleted  int
	totalDeleted int
	lastErr      error
}

// NewService creates a retention job. It does nothing until Start.
func NewService(purger Purger, logger *zap.Logger, cfg Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		purger:  purger,
		logger:  logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background loop. The first run happens immediately.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("retention service already started")
	}
	if s.cfg.Interval <= 0 || s.cfg.BatchSize <= 0 {
		return fmt.Errorf("retention interval and batch size must be positive")
	}

	s.wg.Add(1)
	go s.loop()

	s.started = true
	s.logger.Info("started retention service",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("max_age", s.cfg.MaxAge),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Float64("batches_per_second", s.cfg.BatchesPerSecond))

	return nil
}

// Stop signals the loop to exit and waits for the in-flight batch to finish
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("retention service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping retention service")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("retention service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("retention service stop timeout after %v", timeout)
	}
}

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("retention run failed", zap.Error(err))
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce purges everything older than now-MaxAge, one bounded batch at a time,
// until nothing is left or ctx is cancelled. A batch already issued runs to
// completion even if ctx is cancelled meanwhile.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.MaxAge).UnixMilli()
	deleted := 0

	var runErr error
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		res, err := s.purger.PurgeOlderThan(context.WithoutCancel(ctx), cutoff, "", s.cfg.BatchSize)
		if err != nil {
			runErr = err
			break
		}
		deleted += res.DeletedCount

		if res.RemainingCount == 0 || res.DeletedCount == 0 {
			break
		}
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
	}

	s.record(deleted, runErr)
	s.logger.Info("retention run finished",
		zap.Int64("cutoff", cutoff),
		zap.Int("deleted_count", deleted))
	return deleted, runErr
}

func (s *Service) record(deleted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRun = s.now()
	s.lastDeleted = deleted
	s.totalDeleted += deleted
	s.lastErr = err
}

// GetStats returns statistics about the retention job
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Started:      s.started,
		Runs:         s.runs,
		LastRun:      s.lastRun,
		LastDeleted:  s.lastDeleted,
		TotalDeleted: s.totalDeleted,
		LastError:    s.lastErr,
	}
}

// Stats represents retention job statistics
type Stats struct {
	Started      bool
	Runs         int
	LastRun      time.Time
	LastDeleted  int
	TotalDeleted int
	LastError    error
}
