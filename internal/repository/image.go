package repository

import (
	"context"
	"errors"

	"polished/internal/models"
	"polished/internal/store"

	"gorm.io/gorm"
)

// GenerationRecord carries the fields for an AI-derived image row. The
// caller must already hold the stored file path; this repository never
// talks to the generation service.
type GenerationRecord struct {
	PostID        *uint
	FilePath      string
	Prompt        string
	ParentImageID *uint
	Mode          string
}

// ImageRepository defines storage operations for post images. Images
// are append-only: there is no update and no standalone delete —
// deletion happens only through the owning post's cascade.
type ImageRepository interface {
	ListForPost(ctx context.Context, postID uint) ([]*models.Image, error)
	GetByID(ctx context.Context, id uint) (*models.Image, error)
	RecordUpload(ctx context.Context, postID *uint, path string) (*models.Image, error)
	RecordGeneration(ctx context.Context, rec GenerationRecord) (*models.Image, error)
}

type imageRepository struct {
	store *store.Store
}

// NewImageRepository returns a repository implementation for image rows.
func NewImageRepository(s *store.Store) ImageRepository {
	return &imageRepository{store: s}
}

func (r *imageRepository) ListForPost(ctx context.Context, postID uint) ([]*models.Image, error) {
	// Initialized so an imageless post serializes as [] rather than null.
	images := make([]*models.Image, 0)
	err := r.store.DB().WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&images).Error
	return images, err
}

func (r *imageRepository) GetByID(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := r.store.DB().WithContext(ctx).First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Image", id)
		}
		return nil, err
	}
	return &image, nil
}

func (r *imageRepository) RecordUpload(ctx context.Context, postID *uint, path string) (*models.Image, error) {
	if path == "" {
		return nil, models.NewValidationError("file_path is required")
	}

	image := &models.Image{
		PostID:   postID,
		FilePath: path,
		Mode:     models.ImageModeInitial,
	}
	err := r.store.Mutate(ctx, "image_upload", func(tx *gorm.DB) error {
		return tx.Create(image).Error
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (r *imageRepository) RecordGeneration(ctx context.Context, rec GenerationRecord) (*models.Image, error) {
	if rec.FilePath == "" {
		return nil, models.NewValidationError("file_path is required")
	}

	prompt := rec.Prompt
	image := &models.Image{
		PostID:        rec.PostID,
		FilePath:      rec.FilePath,
		Prompt:        &prompt,
		ParentImageID: rec.ParentImageID,
		Mode:          models.NormalizeImageMode(rec.Mode),
	}
	err := r.store.Mutate(ctx, "image_generation", func(tx *gorm.DB) error {
		// The parent must resolve before the insert is attempted; the
		// store's foreign key would reject an orphan anyway, but a
		// not-found is the contract here.
		if rec.ParentImageID != nil {
			var parent models.Image
			if err := tx.First(&parent, *rec.ParentImageID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return models.NewNotFoundError("Parent image", *rec.ParentImageID)
				}
				return err
			}
		}
		return tx.Create(image).Error
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}
