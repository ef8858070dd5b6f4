package models

import "time"

// Follow is a directed social-graph edge: FollowerID follows FollowingID.
// At most one edge exists per ordered pair and FollowerID never equals FollowingID.
type Follow struct {
	ID          string    `json:"id"`
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}
