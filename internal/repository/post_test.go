package repository

import (
	"context"
	"testing"

	"polished/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_CreateDefaults(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	post, err := repo.Create(ctx, CreatePostInput{})
	require.NoError(t, err)

	assert.Equal(t, "Untitled", post.Title)
	assert.Equal(t, "", post.Body)
	assert.Nil(t, post.CoverImage)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.NotZero(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())

	// The stored row matches what Create returned.
	loaded, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Title, loaded.Title)
	assert.Equal(t, post.Status, loaded.Status)
}

func TestPostRepository_CreateRejectsUnknownStatus(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))

	_, err := repo.Create(context.Background(), CreatePostInput{Status: "archived"})
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestPostRepository_ListsPartitionByStatus(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, CreatePostInput{Title: "first", Status: models.PostStatusPublished})
	require.NoError(t, err)
	second, err := repo.Create(ctx, CreatePostInput{Title: "second", Status: models.PostStatusPublished})
	require.NoError(t, err)
	draft, err := repo.Create(ctx, CreatePostInput{Title: "draft", Status: models.PostStatusDraft})
	require.NoError(t, err)

	published, err := repo.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 2)
	// Newest first.
	assert.Equal(t, second.ID, published[0].ID)
	assert.Equal(t, first.ID, published[1].ID)

	drafts, err := repo.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)
}

func TestPostRepository_ListDraftsOrdersByEdit(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	older, err := repo.Create(ctx, CreatePostInput{Title: "older"})
	require.NoError(t, err)
	newer, err := repo.Create(ctx, CreatePostInput{Title: "newer"})
	require.NoError(t, err)

	// Editing the older draft moves it to the top of the list.
	_, err = repo.Update(ctx, older.ID, map[string]any{"body": "revised"})
	require.NoError(t, err)

	drafts, err := repo.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, older.ID, drafts[0].ID)
	assert.Equal(t, newer.ID, drafts[1].ID)
}

func TestPostRepository_UpdateSparsePatch(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	cover := "/uploads/cover.png"
	post, err := repo.Create(ctx, CreatePostInput{Title: "Original", Body: "Body", CoverImage: &cover})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, post.ID, map[string]any{"title": "Renamed"})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	// Untouched fields keep their values.
	assert.Equal(t, "Body", updated.Body)
	require.NotNil(t, updated.CoverImage)
	assert.Equal(t, cover, *updated.CoverImage)
}

func TestPostRepository_UpdateAppliesExplicitNull(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	cover := "/uploads/cover.png"
	post, err := repo.Create(ctx, CreatePostInput{CoverImage: &cover})
	require.NoError(t, err)

	// A key explicitly set to null clears the column; an absent key would
	// have left it alone.
	updated, err := repo.Update(ctx, post.ID, map[string]any{"cover_image": nil})
	require.NoError(t, err)
	assert.Nil(t, updated.CoverImage)
}

func TestPostRepository_UpdateStatusTransitions(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	post, err := repo.Create(ctx, CreatePostInput{})
	require.NoError(t, err)

	published, err := repo.Update(ctx, post.ID, map[string]any{"status": models.PostStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, published.Status)

	// Publishing is one-way.
	_, err = repo.Update(ctx, post.ID, map[string]any{"status": models.PostStatusDraft})
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	// Re-publishing an already published post is a no-op, not an error.
	again, err := repo.Update(ctx, post.ID, map[string]any{"status": models.PostStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, again.Status)
}

func TestPostRepository_UpdateRejectsUnknownField(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	post, err := repo.Create(ctx, CreatePostInput{})
	require.NoError(t, err)

	_, err = repo.Update(ctx, post.ID, map[string]any{"author": "someone"})
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestPostRepository_MissingPost(t *testing.T) {
	repo := NewPostRepository(newTestStore(t))
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 42)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = repo.Update(ctx, 42, map[string]any{"title": "x"})
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	err = repo.Delete(ctx, 42)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestPostRepository_DeleteRemovesImages(t *testing.T) {
	st := newTestStore(t)
	posts := NewPostRepository(st)
	images := NewImageRepository(st)
	ctx := context.Background()

	post, err := posts.Create(ctx, CreatePostInput{})
	require.NoError(t, err)

	_, err = images.RecordUpload(ctx, &post.ID, "/uploads/a.png")
	require.NoError(t, err)
	_, err = images.RecordUpload(ctx, &post.ID, "/uploads/b.png")
	require.NoError(t, err)

	require.NoError(t, posts.Delete(ctx, post.ID))

	remaining, err := images.ListForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
