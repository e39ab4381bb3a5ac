// Package service holds application logic between the HTTP layer and
// the repositories.
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"polished/internal/config"
	"polished/internal/generation"
	"polished/internal/models"
	"polished/internal/observability"
	"polished/internal/repository"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// DefaultMaxUploadSizeMB bounds uploads when no config is supplied.
	DefaultMaxUploadSizeMB = 10

	// PublicUploadPrefix is the URL prefix under which stored files are served.
	PublicUploadPrefix = "/uploads"
)

// stylePrefix pins every generation to the site's house style.
const stylePrefix = "Oil painting style using ONLY three colors: deep black (#1A1814), " +
	"neon red (#E8222C), and electric blue (#1B4DFF) on a cream (#F5F4EF) background. " +
	"Bold thick brushstrokes with visible paint texture, pixelated blocky feel like " +
	"pixel art meets oil painting. Abstract expressionist. "

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadInput is an inbound image file bound for storage.
type UploadInput struct {
	PostID      *uint
	Filename    string
	ContentType string
	Content     []byte
}

// GenerateInput describes an image-generation request. ParentImageID is
// set when the new image is derived from an existing one.
type GenerateInput struct {
	PostID        *uint
	Prompt        string
	Mode          string
	ParentImageID *uint
}

// ImageService stores uploaded image bytes, orchestrates generation
// calls, and records the resulting rows.
type ImageService struct {
	repo           repository.ImageRepository
	generator      generation.Generator
	uploadDir      string
	maxUploadBytes int64
}

// NewImageService wires the image repository and the generation
// collaborator. generator may be nil when generation is disabled.
func NewImageService(repo repository.ImageRepository, generator generation.Generator, cfg *config.Config) *ImageService {
	uploadDir := "uploads"
	maxUploadSizeMB := DefaultMaxUploadSizeMB
	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.MaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.MaxUploadSizeMB
		}
	}

	return &ImageService{
		repo:           repo,
		generator:      generator,
		uploadDir:      uploadDir,
		maxUploadBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// GenerationConfigured reports whether the generation collaborator has
// credentials and can be called.
func (s *ImageService) GenerationConfigured() bool {
	return s.generator != nil && s.generator.Configured()
}

// Upload validates the file, writes it under the upload directory, and
// records an initial-mode image row.
func (s *ImageService) Upload(ctx context.Context, in UploadInput) (*models.Image, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No valid image file provided")
	}
	if int64(len(in.Content)) > s.maxUploadBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadBytes/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if !allowedExtensions[ext] {
		return nil, models.NewValidationError("Invalid image type")
	}

	if in.ContentType != "" && !strings.HasPrefix(in.ContentType, "image/") {
		return nil, models.NewValidationError("Invalid image type")
	}
	detected := http.DetectContentType(in.Content)
	if !strings.HasPrefix(detected, "image/") {
		return nil, models.NewValidationError("Invalid image type")
	}
	if _, _, err := image.Decode(bytes.NewReader(in.Content)); err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	name := uuid.NewString() + ext
	if err := s.writeFile(name, in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	img, err := s.repo.RecordUpload(ctx, in.PostID, PublicUploadPrefix+"/"+name)
	if err != nil {
		s.removeFile(name)
		return nil, err
	}

	observability.UploadedImageBytes.Add(float64(len(in.Content)))
	return img, nil
}

// Generate calls the external generation service and records the
// resulting image. No row is written if the collaborator fails.
func (s *ImageService) Generate(ctx context.Context, in GenerateInput) (*models.Image, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, models.NewValidationError("Prompt is required")
	}
	if s.generator == nil || !s.generator.Configured() {
		return nil, models.NewUnconfiguredError(
			"Image generation is not configured. Set OPENAI_API_KEY to enable it.")
	}

	mode := models.NormalizeImageMode(in.Mode)

	// A derived image is steered by its parent's bytes; resolve the
	// parent first so a dangling reference never reaches the collaborator.
	var reference []byte
	if in.ParentImageID != nil {
		parent, err := s.repo.GetByID(ctx, *in.ParentImageID)
		if err != nil {
			return nil, err
		}
		if mode != models.ImageModeInitial {
			content, readErr := s.readFile(parent.FilePath)
			if readErr != nil {
				return nil, models.NewInternalError(readErr)
			}
			reference = content
		}
	}

	content, err := s.generator.Generate(ctx, stylePrefix+in.Prompt, reference)
	if err != nil {
		observability.GenerationRequests.WithLabelValues("failure").Inc()
		return nil, models.NewCollaboratorError("Image generation failed", err)
	}

	name := uuid.NewString() + "-ai.png"
	if err := s.writeFile(name, content); err != nil {
		return nil, models.NewInternalError(err)
	}

	img, err := s.repo.RecordGeneration(ctx, repository.GenerationRecord{
		PostID:        in.PostID,
		FilePath:      PublicUploadPrefix + "/" + name,
		Prompt:        in.Prompt,
		ParentImageID: in.ParentImageID,
		Mode:          mode,
	})
	if err != nil {
		s.removeFile(name)
		return nil, err
	}

	observability.GenerationRequests.WithLabelValues("success").Inc()
	return img, nil
}

func (s *ImageService) writeFile(name string, content []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.uploadDir, name), content, 0o644); err != nil {
		return fmt.Errorf("failed to store image file: %w", err)
	}
	return nil
}

func (s *ImageService) removeFile(name string) {
	_ = os.Remove(filepath.Join(s.uploadDir, name))
}

// readFile resolves a stored public path ("/uploads/<name>") back to
// the bytes on disk.
func (s *ImageService) readFile(filePath string) ([]byte, error) {
	name := strings.TrimPrefix(filePath, PublicUploadPrefix+"/")
	return os.ReadFile(filepath.Join(s.uploadDir, filepath.Base(name)))
}
