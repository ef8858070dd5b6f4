// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents a skier registered in PeakShare.
// Follower/following/post counts are derived and never stored here.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	FullName        string    `json:"full_name"`
	Bio             *string   `json:"bio,omitempty"`
	ProfileImageURL *string   `json:"profile_image_url,omitempty"`
	Website         *string   `json:"website,omitempty"`
	Location        *string   `json:"location,omitempty"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Bio = cloneString(u.Bio)
	c.ProfileImageURL = cloneString(u.ProfileImageURL)
	c.Website = cloneString(u.Website)
	c.Location = cloneString(u.Location)
	return &c
}

// Stats holds the derived per-user aggregates.
type Stats struct {
	PostCount      int `json:"post_count"`
	FollowerCount  int `json:"follower_count"`
	FollowingCount int `json:"following_count"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
