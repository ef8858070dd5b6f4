package server

import (
	"peakshare/internal/models"
	"peakshare/internal/store"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content  string `json:"content"`
		ResortID string `json:"resort_id"`
		ImageURL string `json:"image_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.store.CreatePost(c.UserContext(), store.CreatePostInput{
		UserID:   actingUser(c),
		Content:  req.Content,
		ResortID: req.ResortID,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.store.GetPost(c.Params("id"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.store.DeletePostAs(c.UserContext(), actingUser(c), c.Params("id")); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/posts/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	res, err := s.store.ToggleLike(c.UserContext(), c.Params("id"), actingUser(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(res)
}

// AddComment handles POST /api/posts/:id/comments
func (s *Server) AddComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.store.AddComment(c.UserContext(), c.Params("id"), actingUser(c), req.Content)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// RemoveComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) RemoveComment(c *fiber.Ctx) error {
	err := s.store.RemoveCommentAs(c.UserContext(), actingUser(c), c.Params("id"), c.Params("commentId"))
	if err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
