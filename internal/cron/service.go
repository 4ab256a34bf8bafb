package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thaohienhomes/phochat-payments/internal/metrics"
)

const defaultInterval = 30 * time.Minute

type ServiceParams struct {
	Logger   *slog.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs registered jobs on a fixed cadence.
type Service struct {
	logger   *slog.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logger:   params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then once per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("scheduled run failed", "error", err)
			}
		}
	}
}

// RunOnce runs every job once under the lock. Job failures are logged and
// counted; they never stop the remaining jobs.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logger.Info("another worker holds the lock; skipping this cycle")
		for _, job := range s.registry.Jobs() {
			s.metrics.IncSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logger.Error("failed to release cron lock", "error", relErr)
		}
	}()

	s.logger.Info("scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logger.Info("scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	lg := s.logger.With("job", job.Name(), "event", "cron.job")
	lg.Info("job start")
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	lg = lg.With("duration_ms", duration.Milliseconds())
	if err != nil {
		lg.Error("job failed", "error", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	lg.Info("job completed")
	s.metrics.IncSuccess(job.Name())
}
