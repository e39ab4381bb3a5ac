package server

import (
	"io"
	"strconv"

	"polished/internal/models"
	"polished/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GenerateImageRequest is the payload for POST /api/images/generate.
// image_id names the parent image when the new one derives from it.
type GenerateImageRequest struct {
	Prompt  string `json:"prompt"`
	Mode    string `json:"mode"`
	PostID  *uint  `json:"post_id"`
	ImageID *uint  `json:"image_id"`
}

// GetPostImages handles GET /api/images/:postId — a post's images,
// oldest first.
func (s *Server) GetPostImages(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	images, err := s.imageRepo.ListForPost(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(images)
}

// UploadImage handles POST /api/images/upload. Expects multipart form
// data with an "image" file and an optional "post_id" field.
func (s *Server) UploadImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No valid image file provided"))
	}

	var postID *uint
	if raw := c.FormValue("post_id"); raw != "" {
		parsed, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil || parsed == 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid post ID"))
		}
		id := uint(parsed)
		postID = &id
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No valid image file provided"))
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	image, err := s.imageService.Upload(c.UserContext(), service.UploadInput{
		PostID:      postID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(image)
}

// GenerateImage handles POST /api/images/generate
func (s *Server) GenerateImage(c *fiber.Ctx) error {
	var req GenerateImageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	image, err := s.imageService.Generate(c.UserContext(), service.GenerateInput{
		PostID:        req.PostID,
		Prompt:        req.Prompt,
		Mode:          req.Mode,
		ParentImageID: req.ImageID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(image)
}
