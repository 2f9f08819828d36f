package cron

import (
	"context"
	"log/slog"
	"time"
)

// IdlePruner is the subset of the conversation service needed by cleanup
// jobs. Defined here to avoid a dependency on the conversation package.
type IdlePruner interface {
	PruneIdle(maxIdle time.Duration) int
}

// BucketPruner is the subset of the rate limiter needed by cleanup jobs.
type BucketPruner interface {
	Prune(maxIdle time.Duration) int
}

// StateCleanupJob evicts per-channel locks and summarization state for
// channels idle longer than MaxIdle.
type StateCleanupJob struct {
	Pruner       IdlePruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*StateCleanupJob)(nil)

// Name implements Job.
func (j *StateCleanupJob) Name() string { return "state_cleanup" }

// Schedule implements Job.
func (j *StateCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run prunes channel state idle longer than MaxIdle.
func (j *StateCleanupJob) Run(_ context.Context) error {
	pruned := j.Pruner.PruneIdle(j.MaxIdle)
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle channel state", "count", pruned)
	}
	return nil
}

// BucketCleanupJob drops rate limit buckets whose channels have gone quiet,
// keeping the limiter's memory proportional to active channels.
type BucketCleanupJob struct {
	Limiter      BucketPruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*BucketCleanupJob)(nil)

// Name implements Job.
func (j *BucketCleanupJob) Name() string { return "bucket_cleanup" }

// Schedule implements Job.
func (j *BucketCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes rate limit buckets idle longer than MaxIdle.
func (j *BucketCleanupJob) Run(_ context.Context) error {
	pruned := j.Limiter.Prune(j.MaxIdle)
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle rate limit buckets", "count", pruned)
	}
	return nil
}
