package store

import (
	"fmt"

	"peakshare/internal/models"
)

// Snapshot is a full copy of the store collections in insertion order.
type Snapshot struct {
	Users   []*models.User   `json:"users"`
	Posts   []*models.Post   `json:"posts"`
	Follows []*models.Follow `json:"follows"`
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Users:   make([]*models.User, 0, len(s.userOrder)),
		Posts:   make([]*models.Post, 0, len(s.postOrder)),
		Follows: make([]*models.Follow, 0, len(s.followOrder)),
	}
	for _, id := range s.userOrder {
		snap.Users = append(snap.Users, s.users[id].Clone())
	}
	for _, id := range s.postOrder {
		snap.Posts = append(snap.Posts, s.posts[id].Clone())
	}
	for _, id := range s.followOrder {
		f := *s.follows[id]
		snap.Follows = append(snap.Follows, &f)
	}
	return snap
}

// Restore replaces the store contents with snap. The snapshot is checked for
// duplicate keys (comment ids included), dangling references, self-follows and
// like-count drift before anything is replaced; no change events are emitted.
func (s *Store) Restore(snap Snapshot) error {
	fresh := New()

	for _, u := range snap.Users {
		if u == nil || u.ID == "" {
			return fmt.Errorf("restore: user without id")
		}
		if _, dup := fresh.users[u.ID]; dup {
			return fmt.Errorf("restore: duplicate user %s", u.ID)
		}
		if _, dup := fresh.usernames[normalizeKey(u.Username)]; dup {
			return fmt.Errorf("restore: duplicate username %q", u.Username)
		}
		if _, dup := fresh.emails[normalizeKey(u.Email)]; dup {
			return fmt.Errorf("restore: duplicate email %q", u.Email)
		}
		fresh.insertUserLocked(u.Clone())
	}

	commentIDs := map[string]bool{}
	for _, p := range snap.Posts {
		if p == nil || p.ID == "" {
			return fmt.Errorf("restore: post without id")
		}
		for _, c := range p.Comments {
			if c == nil || c.ID == "" {
				return fmt.Errorf("restore: post %s has a comment without id", p.ID)
			}
			if commentIDs[c.ID] {
				return fmt.Errorf("restore: duplicate comment %s", c.ID)
			}
			commentIDs[c.ID] = true
		}
		if _, dup := fresh.posts[p.ID]; dup {
			return fmt.Errorf("restore: duplicate post %s", p.ID)
		}
		if _, ok := fresh.users[p.UserID]; !ok {
			return fmt.Errorf("restore: post %s references unknown user %s", p.ID, p.UserID)
		}
		cp := p.Clone()
		seen := make(map[string]bool, len(cp.LikedBy))
		for _, uid := range cp.LikedBy {
			if seen[uid] {
				return fmt.Errorf("restore: post %s liked twice by %s", p.ID, uid)
			}
			if _, ok := fresh.users[uid]; !ok {
				return fmt.Errorf("restore: post %s liked by unknown user %s", p.ID, uid)
			}
			seen[uid] = true
		}
		if cp.Likes != len(cp.LikedBy) {
			return fmt.Errorf("restore: post %s has %d likes but %d likers", p.ID, cp.Likes, len(cp.LikedBy))
		}
		for _, c := range cp.Comments {
			if _, ok := fresh.users[c.UserID]; !ok {
				return fmt.Errorf("restore: comment %s references unknown user %s", c.ID, c.UserID)
			}
			c.PostID = cp.ID
		}
		fresh.posts[cp.ID] = cp
		fresh.postOrder = append(fresh.postOrder, cp.ID)
	}

	for _, f := range snap.Follows {
		if f == nil || f.ID == "" {
			return fmt.Errorf("restore: follow without id")
		}
		if f.FollowerID == f.FollowingID {
			return fmt.Errorf("restore: self-follow %s", f.ID)
		}
		if _, ok := fresh.users[f.FollowerID]; !ok {
			return fmt.Errorf("restore: follow %s references unknown user %s", f.ID, f.FollowerID)
		}
		if _, ok := fresh.users[f.FollowingID]; !ok {
			return fmt.Errorf("restore: follow %s references unknown user %s", f.ID, f.FollowingID)
		}
		if _, dup := fresh.edges[edgeKey{follower: f.FollowerID, following: f.FollowingID}]; dup {
			return fmt.Errorf("restore: duplicate follow %s -> %s", f.FollowerID, f.FollowingID)
		}
		cp := *f
		fresh.insertFollowLocked(&cp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.userOrder, s.usernames, s.emails = fresh.users, fresh.userOrder, fresh.usernames, fresh.emails
	s.posts, s.postOrder = fresh.posts, fresh.postOrder
	s.follows, s.followOrder, s.edges = fresh.follows, fresh.followOrder, fresh.edges
	return nil
}
