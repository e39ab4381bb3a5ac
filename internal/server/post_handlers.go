package server

import (
	"encoding/json"

	"polished/internal/models"
	"polished/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the payload for creating a post. Every field is
// optional; omitted fields fall back to their defaults.
type CreatePostRequest struct {
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	CoverImage *string `json:"cover_image"`
	Status     string  `json:"status"`
}

// GetPosts handles GET /api/posts — published posts, newest first.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postRepo.ListPublished(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetDrafts handles GET /api/posts/drafts — drafts, most recently
// edited first.
func (s *Server) GetDrafts(c *fiber.Ctx) error {
	posts, err := s.postRepo.ListDrafts(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	// An empty body is a valid request: it creates an untitled draft.
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	post, err := s.postRepo.Create(c.UserContext(), repository.CreatePostInput{
		Title:      req.Title,
		Body:       req.Body,
		CoverImage: req.CoverImage,
		Status:     req.Status,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id with a sparse patch: only keys
// present in the body are written, and an explicit null clears the
// column. The raw JSON is decoded into a map so absent and null keys
// stay distinguishable.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	fields := make(map[string]any)
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &fields); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	post, err := s.postRepo.Update(c.UserContext(), id, fields)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id. The post's images go with it.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postRepo.Delete(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
