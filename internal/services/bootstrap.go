package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"divvy/internal/core"
	"divvy/internal/storage"
)

// DefaultGroupID is the id of the seeded catch-all group. Entries can always
// be reassigned to it even on a fresh database.
const DefaultGroupID = "general"

// Bootstrapper seeds required records on first use. Concurrent callers are
// collapsed with singleflight; the storage-level conditional write covers
// racing processes.
type Bootstrapper struct {
	store storage.Store
	group singleflight.Group
}

func NewBootstrapper(store storage.Store) *Bootstrapper {
	return &Bootstrapper{store: store}
}

// EnsureDefaults makes sure the default ledger group exists. Safe to call on
// every request path that needs it.
func (b *Bootstrapper) EnsureDefaults(ctx context.Context) error {
	_, err, _ := b.group.Do("defaults", func() (interface{}, error) {
		group := &core.Group{
			ID:        DefaultGroupID,
			Name:      "General",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		if err := b.store.EnsureGroup(ctx, group); err != nil {
			return nil, fmt.Errorf("seed default group: %w", err)
		}
		slog.DebugContext(ctx, "Default ledger group ensured", "id", DefaultGroupID)
		return nil, nil
	})
	return err
}
