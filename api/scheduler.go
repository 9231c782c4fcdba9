/*
scheduler.go - Background batch scheduler

PURPOSE:
  Periodically drives the three batch jobs the engine needs:
  - Trial tick: once per day, fires reminders and expiries
  - Monthly accrual: at a month boundary, credits the previous month
  - Year rollover: at a year boundary, carries balances forward

DESIGN:
  - One goroutine, one ticker; every check computes explicit dates and
    hands them to the engines, which are idempotent, so an interval
    shorter than a day is harmless
  - The accrual run targets the PREVIOUS month: once January begins,
    December's grants are due

USAGE:
  s := NewScheduler(h, interval, logger)
  s.Start()
  defer s.Stop()

SEE ALSO:
  - handlers.go: the same runs, triggered manually via /api/admin
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
)

// Scheduler drives the periodic batch jobs.
type Scheduler struct {
	Handler       *Handler
	CheckInterval time.Duration

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(h *Handler, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Handler:       h,
		CheckInterval: interval,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start to catch up after downtime.
	s.check()

	for {
		select {
		case <-s.ticker.C:
			s.check()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) check() {
	ctx := context.Background()
	today := calendar.Today()

	if _, err := s.Handler.Trials.Tick(ctx, today); err != nil {
		s.logger.Error("trial tick failed", zap.Error(err))
	}

	// Previous month's accrual. The engines skip already-marked grants,
	// so running this every check is just a fast no-op most of the time.
	period := leave.PeriodOf(today).Previous()
	if _, err := s.Handler.Accrual.RunAll(ctx, period); err != nil {
		s.logger.Error("accrual run failed",
			zap.String("period", period.String()), zap.Error(err))
	}

	// Year rollover becomes due once January starts.
	if today.Month() == time.January {
		fromYear := today.Year() - 1
		if _, err := s.Handler.Rollover.RunAll(ctx, fromYear); err != nil {
			s.logger.Error("rollover run failed",
				zap.Int("from_year", fromYear), zap.Error(err))
		}
	}
}
