// Package jobs contains the scheduled maintenance jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger deletes expired entries. Implemented by *postgres.KVStore.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeExpiredJob removes expired profile-cache rows from the database
// backend. Redis and the memory store expire keys on their own.
type PurgeExpiredJob struct {
	purger  Purger
	timeout time.Duration
	logger  *slog.Logger
}

// NewPurgeExpiredJob creates the job. timeout bounds a single run.
func NewPurgeExpiredJob(purger Purger, timeout time.Duration, logger *slog.Logger) *PurgeExpiredJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PurgeExpiredJob{purger: purger, timeout: timeout, logger: logger}
}

// Name returns the job name.
func (j *PurgeExpiredJob) Name() string { return "purge_expired_kv" }

// Run deletes expired rows once.
func (j *PurgeExpiredJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired: %w", err)
	}
	if n > 0 {
		j.logger.Info("expired entries purged", "count", n)
	}
	return nil
}
