package store

import "peakshare/internal/models"

// Reader is a read-only view of the store, valid only inside the callback
// passed to Store.Read. Returned pointers alias store state: callers must not
// modify them and must clone anything they keep past the callback.
type Reader struct {
	s *Store
}

// Read runs fn against a consistent snapshot under the read lock.
func (s *Store) Read(fn func(r Reader)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(Reader{s: s})
}

// User returns the user with id.
func (r Reader) User(id string) (*models.User, bool) {
	u, ok := r.s.users[id]
	return u, ok
}

// Users calls fn for each user in registration order.
func (r Reader) Users(fn func(*models.User)) {
	for _, id := range r.s.userOrder {
		fn(r.s.users[id])
	}
}

// Posts calls fn for each post in creation order.
func (r Reader) Posts(fn func(*models.Post)) {
	for _, id := range r.s.postOrder {
		fn(r.s.posts[id])
	}
}

// Follows calls fn for each follow edge in creation order.
func (r Reader) Follows(fn func(*models.Follow)) {
	for _, id := range r.s.followOrder {
		fn(r.s.follows[id])
	}
}

// HasEdge reports whether followerID follows followingID.
func (r Reader) HasEdge(followerID, followingID string) bool {
	_, ok := r.s.edges[edgeKey{follower: followerID, following: followingID}]
	return ok
}
