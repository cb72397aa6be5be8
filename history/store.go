// Package history persists run snapshots so the next run has something to
// compare against.
package history

import (
	"context"
	"fmt"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// Store loads the previous snapshot and saves the current one. Saves are
// last-write-wins; there is a single writer per store.
type Store interface {
	// Load returns the most recent snapshot, or nil when there is none.
	Load(ctx context.Context) (*models.Snapshot, error)

	// Save persists snap as the most recent snapshot.
	Save(ctx context.Context, snap models.Snapshot) error

	Close() error
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "json":
		return NewJSONFile(cfg.Path), nil
	case "sqlite":
		return NewSQLite(ctx, cfg.Path)
	default:
		return nil, models.NewScrapeError(models.ErrCodeHistory,
			fmt.Sprintf("unknown history backend %q", cfg.Backend), nil)
	}
}
