// Package repository implements data access for posts and images on top
// of the embedded store.
package repository

import (
	"context"
	"errors"

	"polished/internal/models"
	"polished/internal/store"

	"gorm.io/gorm"
)

// Updatable post columns accepted by Update. Anything else in the patch
// payload is rejected before touching the store.
var postPatchColumns = map[string]bool{
	"title":       true,
	"body":        true,
	"cover_image": true,
	"status":      true,
}

// CreatePostInput carries the fields for a new post. Omitted fields get
// their defaults: title "Untitled", body "", status draft, no cover.
type CreatePostInput struct {
	Title      string
	Body       string
	CoverImage *string
	Status     string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	ListPublished(ctx context.Context) ([]*models.Post, error)
	ListDrafts(ctx context.Context) ([]*models.Post, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Create(ctx context.Context, in CreatePostInput) (*models.Post, error)
	Update(ctx context.Context, id uint, fields map[string]any) (*models.Post, error)
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	store *store.Store
}

// NewPostRepository creates a new post repository
func NewPostRepository(s *store.Store) PostRepository {
	return &postRepository{store: s}
}

func (r *postRepository) ListPublished(ctx context.Context) ([]*models.Post, error) {
	// Initialized so an empty feed serializes as [] rather than null.
	posts := make([]*models.Post, 0)
	err := r.store.DB().WithContext(ctx).
		Where("status = ?", models.PostStatusPublished).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListDrafts(ctx context.Context) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	err := r.store.DB().WithContext(ctx).
		Where("status = ?", models.PostStatusDraft).
		Order("updated_at DESC, id DESC").
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.store.DB().WithContext(ctx).First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := in.Title
	if title == "" {
		title = "Untitled"
	}
	status := in.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	if !models.ValidPostStatus(status) {
		return nil, models.NewValidationError("Invalid status")
	}

	post := &models.Post{
		Title:      title,
		Body:       in.Body,
		CoverImage: in.CoverImage,
		Status:     status,
	}
	err := r.store.Mutate(ctx, "post_create", func(tx *gorm.DB) error {
		return tx.Create(post).Error
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Update applies a sparse patch: only keys present in fields are
// written, and a key explicitly set to null IS applied. updated_at is
// refreshed on every successful patch.
func (r *postRepository) Update(ctx context.Context, id uint, fields map[string]any) (*models.Post, error) {
	updates := make(map[string]any, len(fields))
	for column, value := range fields {
		if !postPatchColumns[column] {
			return nil, models.NewValidationError("Unknown field: " + column)
		}
		updates[column] = value
	}

	var post models.Post
	err := r.store.Mutate(ctx, "post_update", func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return err
		}

		if raw, ok := updates["status"]; ok {
			status, _ := raw.(string)
			if !models.ValidPostStatus(status) {
				return models.NewValidationError("Invalid status")
			}
			// Publishing is one-way: published posts never return to draft.
			if post.Status == models.PostStatusPublished && status == models.PostStatusDraft {
				return models.NewValidationError("A published post cannot return to draft")
			}
		}

		if len(updates) == 0 {
			// Still refresh updated_at so every save bumps the draft ordering.
			return tx.Model(&post).Update("title", post.Title).Error
		}
		return tx.Model(&post).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.store.Mutate(ctx, "post_delete", func(tx *gorm.DB) error {
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		// Images are removed by the store's ON DELETE CASCADE.
		return nil
	})
}
