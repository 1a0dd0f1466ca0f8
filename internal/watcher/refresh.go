package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reddit_watcher/internal/matcher"
	"reddit_watcher/internal/storage"
)

// Refresher merges the static baseline keywords with the keywords stored in
// the database and applies the result to the registry.
type Refresher struct {
	registry *matcher.Registry
	store    storage.Storage
	baseline []string
	interval time.Duration
	log      *slog.Logger
}

// NewRefresher creates a Refresher running at the given interval.
func NewRefresher(registry *matcher.Registry, store storage.Storage, baseline []string,
	interval time.Duration, log *slog.Logger) *Refresher {
	return &Refresher{
		registry: registry,
		store:    store,
		baseline: baseline,
		interval: interval,
		log:      log,
	}
}

// Refresh reloads the keyword set: baseline keywords first, then the store's
// keywords in creation order, de-duplicated. Applying an empty or unchanged
// set is a no-op. On a store error the previous set remains active.
func (r *Refresher) Refresh(ctx context.Context) error {
	stored, err := r.store.ListKeywords(ctx, "")
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}

	merged := make([]string, 0, len(r.baseline)+len(stored))
	merged = append(merged, r.baseline...)
	// ListKeywords is newest-first; append oldest-first so the merged order
	// is stable across refreshes.
	for i := len(stored) - 1; i >= 0; i-- {
		merged = append(merged, stored[i].Text)
	}

	if r.registry.Set(merged) {
		r.log.Info("keyword set updated", "count", len(r.registry.Keywords()))
	}
	return nil
}

// Run refreshes periodically, blocking until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.log.Error("refresh keywords", "error", err)
			}
		}
	}
}
