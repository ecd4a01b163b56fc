package service

import (
	"context"
	"time"
)

// SnapshotJob records a daily portfolio snapshot; it plugs into the cron
// scheduler. Re-running on the same day overwrites that day's entry.
type SnapshotJob struct {
	portfolio *Portfolio
	timeout   time.Duration
}

// NewSnapshotJob wraps the portfolio service as a scheduled job.
func NewSnapshotJob(portfolio *Portfolio, timeout time.Duration) *SnapshotJob {
	return &SnapshotJob{portfolio: portfolio, timeout: timeout}
}

// Name implements scheduler.Job.
func (j *SnapshotJob) Name() string { return "portfolio-snapshot" }

// Run implements scheduler.Job.
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.portfolio.TakeSnapshot(ctx)
	return err
}
