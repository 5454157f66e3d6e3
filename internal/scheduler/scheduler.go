// Package scheduler runs recurring maintenance jobs with gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const slowJobThreshold = 5 * time.Second

// Sweeper deletes sessions that have been idle for longer than ttl.
type Sweeper interface {
	SweepIdle(ctx context.Context, ttl time.Duration) (int64, error)
}

// Scheduler wraps a gocron scheduler running in UTC.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

func New(logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(NewGocronLogger(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// AddJob runs job every interval. A run that is still going when the next
// one is due causes that next run to be skipped.
func (s *Scheduler) AddJob(name string, interval time.Duration, job func()) error {
	if name == "" {
		return errors.New("empty job name")
	}
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}
	if job == nil {
		return errors.New("nil job function")
	}

	wrapped := func() {
		start := time.Now()
		job()
		if d := time.Since(start); d > slowJobThreshold {
			s.logger.Warn("Slow scheduled job", zap.String("job_name", name), zap.Duration("duration", d))
		}
	}

	scheduled, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(wrapped),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	fields := []zap.Field{zap.String("job_name", name), zap.Duration("interval", interval)}
	if next, err := scheduled.NextRun(); err == nil && !next.IsZero() {
		fields = append(fields, zap.Time("next_run", next))
	}
	s.logger.Info("Job scheduled", fields...)
	return nil
}

// AddSweep schedules the idle-session sweep.
func (s *Scheduler) AddSweep(interval, ttl time.Duration, sweeper Sweeper) error {
	return s.AddJob("sweep-idle-sessions", interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		deleted, err := sweeper.SweepIdle(ctx, ttl)
		if err != nil {
			s.logger.Error("Failed to sweep idle sessions", zap.Error(err))
			return
		}
		if deleted > 0 {
			s.logger.Info("Idle sessions deleted", zap.Int64("count", deleted), zap.Duration("ttl", ttl))
		}
	})
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Debug("Scheduler started")
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	return s.Stop()
}
