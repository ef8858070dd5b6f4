// Package graph answers read-only questions about the follow graph: who
// follows whom and the per-user aggregates derived from it.
package graph

import (
	"sort"
	"strings"

	"peakshare/internal/models"
	"peakshare/internal/store"
)

// Query computes derived views over a store. It holds no state of its own,
// so every answer reflects the store at call time.
type Query struct {
	st *store.Store
}

// New returns a Query reading from st.
func New(st *store.Store) *Query {
	return &Query{st: st}
}

// IsFollowing reports whether followerID follows followingID.
func (q *Query) IsFollowing(followerID, followingID string) bool {
	var ok bool
	q.st.Read(func(r store.Reader) {
		ok = r.HasEdge(followerID, followingID)
	})
	return ok
}

// FollowersOf returns the users following userID, in follow order.
func (q *Query) FollowersOf(userID string) []*models.User {
	out := []*models.User{}
	q.st.Read(func(r store.Reader) {
		r.Follows(func(f *models.Follow) {
			if f.FollowingID != userID {
				return
			}
			if u, ok := r.User(f.FollowerID); ok {
				out = append(out, u.Clone())
			}
		})
	})
	return out
}

// FollowingOf returns the users userID follows, in follow order.
func (q *Query) FollowingOf(userID string) []*models.User {
	out := []*models.User{}
	q.st.Read(func(r store.Reader) {
		r.Follows(func(f *models.Follow) {
			if f.FollowerID != userID {
				return
			}
			if u, ok := r.User(f.FollowingID); ok {
				out = append(out, u.Clone())
			}
		})
	})
	return out
}

// FollowingIDs returns the set of user ids userID follows.
func (q *Query) FollowingIDs(userID string) map[string]bool {
	var ids map[string]bool
	q.st.Read(func(r store.Reader) {
		ids = q.FollowingIn(r, userID)
	})
	return ids
}

// FollowingIn is FollowingIDs for callers already holding a Reader.
func (q *Query) FollowingIn(r store.Reader, userID string) map[string]bool {
	ids := map[string]bool{}
	r.Follows(func(f *models.Follow) {
		if f.FollowerID == userID {
			ids[f.FollowingID] = true
		}
	})
	return ids
}

// StatsFor counts posts, followers and followings of userID from a single
// consistent read of the store.
func (q *Query) StatsFor(userID string) (models.Stats, error) {
	var (
		stats models.Stats
		found bool
	)
	q.st.Read(func(r store.Reader) {
		if _, found = r.User(userID); !found {
			return
		}
		stats = countLocked(r, userID)
	})
	if !found {
		return models.Stats{}, models.NewNotFoundError("User", userID)
	}
	return stats, nil
}

func countLocked(r store.Reader, userID string) models.Stats {
	var stats models.Stats
	r.Posts(func(p *models.Post) {
		if p.UserID == userID {
			stats.PostCount++
		}
	})
	r.Follows(func(f *models.Follow) {
		if f.FollowingID == userID {
			stats.FollowerCount++
		}
		if f.FollowerID == userID {
			stats.FollowingCount++
		}
	})
	return stats
}

// Suggestion is a user the viewer might want to follow.
type Suggestion struct {
	User          *models.User `json:"user"`
	FollowerCount int          `json:"follower_count"`
}

// SuggestedUsers lists users viewerID does not follow yet, most followed
// first, then by username. A non-positive limit returns all candidates.
func (q *Query) SuggestedUsers(viewerID string, limit int) []Suggestion {
	out := []Suggestion{}
	q.st.Read(func(r store.Reader) {
		followers := map[string]int{}
		r.Follows(func(f *models.Follow) {
			followers[f.FollowingID]++
		})
		r.Users(func(u *models.User) {
			if u.ID == viewerID || r.HasEdge(viewerID, u.ID) {
				return
			}
			out = append(out, Suggestion{User: u.Clone(), FollowerCount: followers[u.ID]})
		})
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FollowerCount != out[j].FollowerCount {
			return out[i].FollowerCount > out[j].FollowerCount
		}
		return strings.ToLower(out[i].User.Username) < strings.ToLower(out[j].User.Username)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
