package jobs

import (
	"context"
	"log"
	"time"

	"labrecord/internal/logging"
	"labrecord/internal/services"
)

// ExpiryCleanupJob deletes records whose sliding TTL has lapsed
type ExpiryCleanupJob struct {
	store services.RecordStore
}

// NewExpiryCleanupJob creates a new expiry cleanup job
func NewExpiryCleanupJob(store services.RecordStore) *ExpiryCleanupJob {
	return &ExpiryCleanupJob{
		store: store,
	}
}

// Run executes one sweep over all users' records
func (j *ExpiryCleanupJob) Run(ctx context.Context) error {
	logger := logging.WithSweep("scheduled")
	startTime := time.Now()

	deleted, err := j.store.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		if m := services.GetMetrics(); m != nil {
			m.SweepFailures.Inc()
		}
		logger.Error("expiry sweep failed", "deleted", deleted, "error", err)
		log.Printf("❌ [CLEANUP] Sweep failed after %d deletions: %v", deleted, err)
		return err
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordsSwept.Add(float64(deleted))
	}

	logger.Info("expiry sweep finished", "deleted", deleted, "duration", time.Since(startTime).String())
	log.Printf("✅ [CLEANUP] Deleted %d expired records in %v", deleted, time.Since(startTime))
	return nil
}
