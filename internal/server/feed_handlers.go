package server

import (
	"peakshare/internal/feed"
	"peakshare/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFollowingFeed handles GET /api/feed/following
func (s *Server) GetFollowingFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	return c.JSON(feed.Page(s.feed.FollowingFeed(actingUser(c)), page.Limit, page.Offset))
}

// GetGlobalFeed handles GET /api/feed/global
func (s *Server) GetGlobalFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	return c.JSON(feed.Page(s.feed.GlobalFeed(), page.Limit, page.Offset))
}

// GetHashtagFeed handles GET /api/feed/hashtags/:tag
func (s *Server) GetHashtagFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	return c.JSON(feed.Page(s.feed.HashtagFeed(c.Params("tag")), page.Limit, page.Offset))
}

// GetTrendingHashtags handles GET /api/hashtags/trending
func (s *Server) GetTrendingHashtags(c *fiber.Ctx) error {
	page := parsePagination(c, 10)
	return c.JSON(s.feed.TrendingHashtags(page.Limit))
}

// ListResorts handles GET /api/resorts
func (s *Server) ListResorts(c *fiber.Ctx) error {
	return c.JSON(s.resorts.All())
}

// GetResort handles GET /api/resorts/:id
func (s *Server) GetResort(c *fiber.Ctx) error {
	r, ok := s.resorts.Get(c.Params("id"))
	if !ok {
		return respond(c, models.NewNotFoundError("Resort", c.Params("id")))
	}
	return c.JSON(r)
}

// GetResortPosts handles GET /api/resorts/:id/posts
func (s *Server) GetResortPosts(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.resorts.Has(id) {
		return respond(c, models.NewNotFoundError("Resort", id))
	}
	page := parsePagination(c, 20)
	return c.JSON(feed.Page(s.feed.ResortFeed(id), page.Limit, page.Offset))
}
