package server

import (
	"peakshare/internal/feed"
	"peakshare/internal/models"
	"peakshare/internal/store"

	"github.com/gofiber/fiber/v2"
)

// CreateUser handles POST /api/users
func (s *Server) CreateUser(c *fiber.Ctx) error {
	var req struct {
		Email           string `json:"email"`
		Username        string `json:"username"`
		Password        string `json:"password"`
		FullName        string `json:"full_name"`
		Bio             string `json:"bio"`
		ProfileImageURL string `json:"profile_image_url"`
		Website         string `json:"website"`
		Location        string `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.store.CreateUser(c.UserContext(), store.CreateUserInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		FullName:        req.FullName,
		Bio:             req.Bio,
		ProfileImageURL: req.ProfileImageURL,
		Website:         req.Website,
		Location:        req.Location,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetUser handles GET /api/users/:id. The parameter may also be a username.
func (s *Server) GetUser(c *fiber.Ctx) error {
	key := c.Params("id")
	user, err := s.store.GetUser(key)
	if models.IsNotFound(err) {
		user, err = s.store.GetUserByUsername(key)
	}
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// UpdateUser handles PUT /api/users/:id. Users may only edit themselves.
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if actingUser(c) != id {
		return respond(c, models.NewUnauthorizedError("You can only update your own profile"))
	}

	var req struct {
		Email           *string `json:"email"`
		Username        *string `json:"username"`
		FullName        *string `json:"full_name"`
		Bio             *string `json:"bio"`
		ProfileImageURL *string `json:"profile_image_url"`
		Website         *string `json:"website"`
		Location        *string `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.store.UpdateUser(c.UserContext(), id, store.UpdateUserInput{
		Email:           optionalString(req.Email),
		Username:        optionalString(req.Username),
		FullName:        optionalString(req.FullName),
		Bio:             optionalString(req.Bio),
		ProfileImageURL: optionalString(req.ProfileImageURL),
		Website:         optionalString(req.Website),
		Location:        optionalString(req.Location),
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// GetUserStats handles GET /api/users/:id/stats
func (s *Server) GetUserStats(c *fiber.Ctx) error {
	stats, err := s.graph.StatsFor(c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(stats)
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.store.GetUser(id); err != nil {
		return respond(c, err)
	}
	page := parsePagination(c, 50)
	return c.JSON(feed.Page(s.graph.FollowersOf(id), page.Limit, page.Offset))
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.store.GetUser(id); err != nil {
		return respond(c, err)
	}
	page := parsePagination(c, 50)
	return c.JSON(feed.Page(s.graph.FollowingOf(id), page.Limit, page.Offset))
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.store.GetUser(id); err != nil {
		return respond(c, err)
	}
	page := parsePagination(c, 20)
	return c.JSON(feed.Page(s.feed.UserFeed(id), page.Limit, page.Offset))
}

// FollowUser handles POST /api/users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	follow, err := s.store.Follow(c.UserContext(), actingUser(c), c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(follow)
}

// UnfollowUser handles DELETE /api/users/:id/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	if err := s.store.Unfollow(c.UserContext(), actingUser(c), c.Params("id")); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSuggestedUsers handles GET /api/users/suggested
func (s *Server) GetSuggestedUsers(c *fiber.Ctx) error {
	viewer := actingUser(c)
	if _, err := s.store.GetUser(viewer); err != nil {
		return respond(c, err)
	}
	page := parsePagination(c, 10)
	return c.JSON(s.graph.SuggestedUsers(viewer, page.Limit))
}
