package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaharia-lab/mailworker/internal/storage"
)

// Job names.
const (
	JobPruneDeliveryLog = "prune-delivery-log"
	JobSweepIdempotency = "sweep-idempotency"
)

// PruneDeliveryLog deletes delivery log records older than retention, hourly.
func PruneDeliveryLog(store storage.DeliveryStore, retention time.Duration, log *slog.Logger) Job {
	return Job{
		Name:  JobPruneDeliveryLog,
		Every: time.Hour,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-retention)
			n, err := store.Prune(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("pruning delivery log: %w", err)
			}
			if n > 0 {
				log.Info("pruned delivery log", "deleted", n, "cutoff", cutoff)
			}
			return nil
		},
	}
}

// SweepIdempotency drops expired entries from the in-memory idempotency
// store every minute.
func SweepIdempotency(store *storage.MemoryIdempotencyStore, log *slog.Logger) Job {
	return Job{
		Name:  JobSweepIdempotency,
		Every: time.Minute,
		Run: func(context.Context) error {
			if n := store.Sweep(); n > 0 {
				log.Debug("swept idempotency entries", "removed", n, "remaining", store.Len())
			}
			return nil
		},
	}
}
