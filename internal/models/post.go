package models

import (
	"regexp"
	"strings"
	"time"
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Post represents a post in the PeakShare feed.
// Likes always equals len(LikedBy).
type Post struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	ResortID  *string    `json:"resort_id,omitempty"`
	ImageURL  *string    `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Likes     int        `json:"likes"`
	LikedBy   []string   `json:"liked_by"`
	Comments  []*Comment `json:"comments"`
}

// Clone returns a deep copy of p. Nil comments are dropped.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.ResortID = cloneString(p.ResortID)
	c.ImageURL = cloneString(p.ImageURL)
	c.LikedBy = append([]string{}, p.LikedBy...)
	c.Comments = make([]*Comment, 0, len(p.Comments))
	for _, cm := range p.Comments {
		if cm == nil {
			continue
		}
		cp := *cm
		c.Comments = append(c.Comments, &cp)
	}
	return &c
}

// LikedByUser reports whether userID is in the like set.
func (p *Post) LikedByUser(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Hashtags returns the distinct lower-cased hashtags in the post content, without '#'.
func (p *Post) Hashtags() []string {
	matches := hashtagPattern.FindAllString(p.Content, -1)
	seen := make(map[string]bool, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(strings.TrimPrefix(m, "#"))
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// HasHashtag reports whether the post carries tag (case-insensitive, '#' optional).
func (p *Post) HasHashtag(tag string) bool {
	tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
	for _, t := range p.Hashtags() {
		if t == tag {
			return true
		}
	}
	return false
}
