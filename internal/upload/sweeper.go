package upload

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/courtside/roster/internal/roster"
	"github.com/courtside/roster/internal/storage"
)

// OrphanSource lists and clears journal rows whose stored object could not
// be deleted after a failed record update.
type OrphanSource interface {
	ListOrphanedUploads(ctx context.Context) ([]*roster.Upload, error)
	UpdateUpload(ctx context.Context, u *roster.Upload) error
}

// Sweeper retries deleting orphaned objects on a fixed interval.
type Sweeper struct {
	store        storage.Store
	source       OrphanSource
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
}

func NewSweeper(store storage.Store, source OrphanSource, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:        store,
		source:       source,
		logger:       logger,
		pollInterval: time.Minute,
	}
}

// Start blocks until ctx is done. Calling it twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}

	s.logger.Info("orphan sweeper started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("orphan sweeper stopping")
			s.running.Store(false)
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) IsRunning() bool {
	return s.running.Load()
}

// Sweep makes one pass and returns how many objects were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	orphans, err := s.source.ListOrphanedUploads(ctx)
	if err != nil {
		s.logger.Error("failed to list orphaned uploads", "error", err)
		return 0
	}

	removed := 0
	for _, u := range orphans {
		if ctx.Err() != nil {
			break
		}
		if err := s.store.Delete(ctx, u.StorageKey); err != nil {
			s.logger.Warn("orphan delete failed", "upload_id", u.ID, "key", u.StorageKey, "error", err)
			continue
		}
		u.Orphaned = false
		u.UpdatedAt = time.Now().UTC()
		if err := s.source.UpdateUpload(ctx, u); err != nil {
			s.logger.Error("failed to clear orphan flag", "upload_id", u.ID, "error", err)
			continue
		}
		removed++
		s.logger.Info("orphaned object removed", "upload_id", u.ID, "key", u.StorageKey)
	}
	return removed
}
