// Package feed composes ordered post timelines from the store.
package feed

import (
	"sort"
	"strings"

	"peakshare/internal/graph"
	"peakshare/internal/models"
	"peakshare/internal/observability"
	"peakshare/internal/store"
)

// Composer builds feeds. Every feed is newest first; posts sharing a
// timestamp keep their creation order.
type Composer struct {
	st *store.Store
	g  *graph.Query
}

// New returns a Composer over st, resolving follow edges through g.
func New(st *store.Store, g *graph.Query) *Composer {
	return &Composer{st: st, g: g}
}

// FollowingFeed returns the viewer's own posts and the posts of everyone
// the viewer follows. An isolated or unknown viewer gets an empty feed.
func (c *Composer) FollowingFeed(viewerID string) []*models.Post {
	defer observability.TrackFeed("following")()

	var posts []*models.Post
	c.st.Read(func(r store.Reader) {
		following := c.g.FollowingIn(r, viewerID)
		posts = collect(r, func(p *models.Post) bool {
			return p.UserID == viewerID || following[p.UserID]
		})
	})
	return newestFirst(posts)
}

// GlobalFeed returns every post.
func (c *Composer) GlobalFeed() []*models.Post {
	defer observability.TrackFeed("global")()
	return c.filtered(func(*models.Post) bool { return true })
}

// UserFeed returns the posts authored by userID.
func (c *Composer) UserFeed(userID string) []*models.Post {
	defer observability.TrackFeed("user")()
	return c.filtered(func(p *models.Post) bool { return p.UserID == userID })
}

// ResortFeed returns the posts tagged with resortID.
func (c *Composer) ResortFeed(resortID string) []*models.Post {
	defer observability.TrackFeed("resort")()
	return c.filtered(func(p *models.Post) bool {
		return p.ResortID != nil && *p.ResortID == resortID
	})
}

// HashtagFeed returns the posts carrying tag. Matching ignores case and a
// leading '#'.
func (c *Composer) HashtagFeed(tag string) []*models.Post {
	defer observability.TrackFeed("hashtag")()
	tag = strings.TrimSpace(tag)
	if strings.TrimPrefix(tag, "#") == "" {
		return []*models.Post{}
	}
	return c.filtered(func(p *models.Post) bool { return p.HasHashtag(tag) })
}

// TagCount is the number of posts using a hashtag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TrendingHashtags ranks hashtags by the number of posts using them, ties
// broken alphabetically. A non-positive limit returns every tag.
func (c *Composer) TrendingHashtags(limit int) []TagCount {
	counts := map[string]int{}
	c.st.Read(func(r store.Reader) {
		r.Posts(func(p *models.Post) {
			for _, t := range p.Hashtags() {
				counts[t]++
			}
		})
	})

	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Page slices items by limit and offset. A non-positive limit means no
// limit; an offset past the end yields an empty slice.
func Page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func (c *Composer) filtered(keep func(*models.Post) bool) []*models.Post {
	var posts []*models.Post
	c.st.Read(func(r store.Reader) {
		posts = collect(r, keep)
	})
	return newestFirst(posts)
}

// collect copies matching posts in store insertion order.
func collect(r store.Reader, keep func(*models.Post) bool) []*models.Post {
	posts := []*models.Post{}
	r.Posts(func(p *models.Post) {
		if keep(p) {
			posts = append(posts, p.Clone())
		}
	})
	return posts
}

func newestFirst(posts []*models.Post) []*models.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}
