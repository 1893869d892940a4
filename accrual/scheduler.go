/*
scheduler.go - Allocation ticker

PURPOSE:
  Wakes up every CheckInterval and asks the Allocator for a scheduled run.
  Whether anything is credited is decided by the allocation settings
  (is_active, end date, next_run_at), not by the ticker.

USAGE:
  scheduler := NewScheduler(allocator, time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - allocator.go: guards and per-user crediting
  - api/handlers.go: RunAllocation endpoint (manual trigger)
*/
package accrual

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	Allocator     *Allocator
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	last   *Report
	lastMu sync.RWMutex
}

func NewScheduler(allocator *Allocator, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Allocator:     allocator,
		CheckInterval: interval,
		Enabled:       true,
		Logger:        logger,
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.Logger.Info("scheduler started", zap.Duration("check_interval", s.CheckInterval))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.tick()

	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	if _, err := s.RunNow(context.Background()); err != nil {
		s.Logger.Error("scheduled allocation failed", zap.Error(err))
	}
}

// RunNow performs one scheduled check immediately.
func (s *Scheduler) RunNow(ctx context.Context) (*Report, error) {
	report, err := s.Allocator.RunScheduled(ctx)
	if report != nil {
		s.lastMu.Lock()
		s.last = report
		s.lastMu.Unlock()
	}
	return report, err
}

// LastReport returns the report of the most recent check, or nil.
func (s *Scheduler) LastReport() *Report {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}
