package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Requeuer re-enqueues stuck compression jobs
type Requeuer interface {
	// Requeue enqueues compression for videos stuck for longer than staleAfter
	// and returns how many jobs were queued.
	Requeue(ctx context.Context, staleAfter time.Duration) (int, error)
}

// Scheduler periodically re-enqueues videos whose compression never finished
type Scheduler struct {
	cron       *cron.Cron
	requeuer   Requeuer
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewScheduler creates a new scheduler running on a standard cron expression
func NewScheduler(schedule string, requeuer Requeuer, staleAfter time.Duration, logger *zap.Logger) (*Scheduler, error) {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid requeue schedule %q: %w", schedule, err)
	}

	s := &Scheduler{
		cron:       cron.New(),
		requeuer:   requeuer,
		staleAfter: staleAfter,
		logger:     logger,
	}
	s.cron.Schedule(spec, cron.FuncJob(s.requeue))
	return s, nil
}

// Start starts the scheduler and runs one pass immediately
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started")
	go s.requeue()
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running pass to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// requeue runs one requeue pass
func (s *Scheduler) requeue() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	queued, err := s.requeuer.Requeue(ctx, s.staleAfter)
	if err != nil {
		s.logger.Error("Failed to requeue stale videos", zap.Error(err))
		return
	}
	if queued > 0 {
		s.logger.Info("Requeued stale videos", zap.Int("count", queued))
	}
}
