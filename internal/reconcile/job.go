package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const JobName = "order-reconcile"

// Job runs the sweep from the cron worker.
type Job struct {
	service   ServiceAPI
	olderThan time.Duration
	logger    *slog.Logger
}

func NewJob(service ServiceAPI, olderThan time.Duration, logger *slog.Logger) *Job {
	return &Job{service: service, olderThan: olderThan, logger: logger}
}

func (j *Job) Name() string { return JobName }

// Run fails when the listing fails or when any order could not be reconciled.
func (j *Job) Run(ctx context.Context) error {
	report, err := j.service.ReconcilePending(ctx, j.olderThan)
	if err != nil {
		return fmt.Errorf("reconcile pending: %w", err)
	}
	j.logger.Info("reconcile job results", "count", report.Count)
	return report.Err()
}
