// Package persistence mirrors store change events into durable backends and
// reads them back at startup.
package persistence

import (
	"context"

	"peakshare/internal/store"
)

// Sink is a durable backend for store state.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	// Apply writes a single change event.
	Apply(ctx context.Context, ev store.ChangeEvent) error
	// Load reads back everything previously applied, in insertion order.
	Load(ctx context.Context) (store.Snapshot, error)
}

// Hydrate restores st from sink. An empty backend leaves st untouched.
func Hydrate(ctx context.Context, st *store.Store, sink Sink) (store.Snapshot, error) {
	snap, err := sink.Load(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	if len(snap.Users) == 0 && len(snap.Posts) == 0 && len(snap.Follows) == 0 {
		return snap, nil
	}
	if err := st.Restore(snap); err != nil {
		return store.Snapshot{}, err
	}
	return snap, nil
}
