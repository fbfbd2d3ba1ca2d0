package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs the engine on a fixed interval.
type Scheduler struct {
	mu       sync.RWMutex
	engine   *Engine
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a sweep scheduler.
func NewScheduler(engine *Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.engine.Sweep(ctx, s.now())
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Debug("scheduled sweep skipped, another sweep is running")
	case err != nil:
		s.logger.Error("scheduled sweep failed", "error", err)
	case res.Processed > 0 || res.Failed > 0:
		s.logger.Info("scheduled sweep",
			"processed", res.Processed,
			"failed", res.Failed,
			"pending", res.Pending,
		)
	}
}
