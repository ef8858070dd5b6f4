package store

import (
	"context"
	"time"

	"peakshare/internal/models"
)

// Entity names the collection a change event refers to.
type Entity string

const (
	EntityUser   Entity = "user"
	EntityPost   Entity = "post"
	EntityFollow Entity = "follow"
)

// Op is the kind of change applied to an entity.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ChangeEvent is emitted after every committed mutation. Exactly one of User,
// Post or Follow is set for upserts; deletes carry the last known snapshot
// when one exists.
//
// Comment and like changes are reported as a post upsert carrying the full post.
type ChangeEvent struct {
	Entity        Entity         `json:"entity"`
	Op            Op             `json:"op"`
	ID            string         `json:"id"`
	User          *models.User   `json:"user,omitempty"`
	Post          *models.Post   `json:"post,omitempty"`
	Follow        *models.Follow `json:"follow,omitempty"`
	At            time.Time      `json:"at"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Listener receives change events in commit order. Listeners run
// synchronously on the mutating goroutine after the store lock is released.
// They may read the store but must not mutate it, and they must not block:
// the next mutation's events wait for them.
type Listener func(ctx context.Context, ev ChangeEvent)

// Subscribe registers l for all subsequent change events.
func (s *Store) Subscribe(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) emit(ctx context.Context, ev ChangeEvent) {
	s.listenersMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(ctx, ev)
	}
}
