package store

import (
	"context"

	"peakshare/internal/models"
)

// Follow creates the edge followerID -> followingID. Following an already
// followed user returns the existing edge and emits nothing.
func (s *Store) Follow(ctx context.Context, followerID, followingID string) (*models.Follow, error) {
	var edge *models.Follow
	err := s.write(ctx, "follow", s.followLog, func() (*ChangeEvent, error) {
		if followerID == followingID {
			return nil, models.NewSelfFollowError(followerID)
		}
		if _, ok := s.users[followerID]; !ok {
			return nil, models.NewNotFoundError("User", followerID)
		}
		if _, ok := s.users[followingID]; !ok {
			return nil, models.NewNotFoundError("User", followingID)
		}

		key := edgeKey{follower: followerID, following: followingID}
		if id, exists := s.edges[key]; exists {
			f := *s.follows[id]
			edge = &f
			return nil, nil
		}

		f := &models.Follow{
			ID:          s.newID(),
			FollowerID:  followerID,
			FollowingID: followingID,
			CreatedAt:   s.now(),
		}
		s.insertFollowLocked(f)

		cp := *f
		edge = &cp
		evCopy := *f
		return &ChangeEvent{Entity: EntityFollow, Op: OpUpsert, ID: f.ID, Follow: &evCopy, At: f.CreatedAt}, nil
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// Unfollow removes the edge followerID -> followingID if it exists.
func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) error {
	return s.write(ctx, "unfollow", s.followLog, func() (*ChangeEvent, error) {
		key := edgeKey{follower: followerID, following: followingID}
		id, exists := s.edges[key]
		if !exists {
			return nil, nil
		}
		f := *s.follows[id]

		delete(s.edges, key)
		delete(s.follows, id)
		s.followOrder = removeID(s.followOrder, id)

		return &ChangeEvent{Entity: EntityFollow, Op: OpDelete, ID: id, Follow: &f, At: s.now()}, nil
	})
}

func (s *Store) insertFollowLocked(f *models.Follow) {
	s.follows[f.ID] = f
	s.followOrder = append(s.followOrder, f.ID)
	s.edges[edgeKey{follower: f.FollowerID, following: f.FollowingID}] = f.ID
}

// ListFollows returns every follow edge in creation order.
func (s *Store) ListFollows() []*models.Follow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Follow, 0, len(s.followOrder))
	for _, id := range s.followOrder {
		f := *s.follows[id]
		out = append(out, &f)
	}
	return out
}
