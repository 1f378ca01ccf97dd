package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bassista/go_dbproxy/internal/logger"
	"github.com/bassista/go_dbproxy/internal/repository"
)

// StartPersistenceScheduler runs a goroutine that periodically flushes dirty cache to disk.
// On ctx.Done, it performs a final flush before returning.
// Returns a channel that is closed when the scheduler has completed shutdown.
func StartPersistenceScheduler(
	ctx context.Context,
	store PersistableStore,
	repo repository.Saver,
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	log := logger.WithComponent("persist")
	log.Debugf("starting persistence scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Debug("persistence scheduler received context cancellation, performing final flush")
				// Final flush on shutdown - use background context to ensure it completes
				if _, err := Flush(context.Background(), store, repo); err != nil {
					log.Errorf("final flush failed: %v", err)
				}
				log.Info("persistence scheduler stopped after final flush")
				return
			case <-ticker.C:
				if _, err := Flush(ctx, store, repo); err != nil {
					log.Errorf("persist error: %v", err)
				}
			}
		}
	}()
	return done
}

// Flush persists the cache if dirty and reports whether a save happened.
func Flush(ctx context.Context, store PersistableStore, repo repository.Saver) (bool, error) {
	if !store.IsDirty() {
		logger.WithComponent("persist").Trace("cache is clean, skipping flush")
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	snapshot, version, err := store.SnapshotVersion()
	if err != nil {
		return false, fmt.Errorf("snapshot: %w", err)
	}

	snapshot.Metadata.LastUpdate = time.Now().UnixMilli()

	if err := repo.Save(ctx, &snapshot); err != nil {
		return false, fmt.Errorf("save: %w", err)
	}

	store.SetLastUpdate(snapshot.Metadata.LastUpdate)
	if !store.ClearDirtyIf(version) {
		logger.WithComponent("persist").Debug("cache changed during save, keeping it dirty")
	}
	logger.WithComponent("persist").Info("cache persisted to disk")
	return true, nil
}
