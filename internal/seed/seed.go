// Package seed provides helpers to create demo content for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"polished/internal/models"
	"polished/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configuration for the seeder
type Options struct {
	NumPublished int
	NumDrafts    int
}

// DefaultOptions returns a small demo set.
func DefaultOptions() Options {
	return Options{NumPublished: 5, NumDrafts: 3}
}

// Demo populates the store with fake posts. Existing content is left
// untouched; calling it repeatedly just adds more posts.
func Demo(ctx context.Context, posts repository.PostRepository, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())

	created := 0
	for i := 0; i < opts.NumPublished; i++ {
		// Published posts go through the draft-first lifecycle like real ones.
		post, err := posts.Create(ctx, demoPost(models.PostStatusDraft))
		if err != nil {
			return fmt.Errorf("failed to seed post: %w", err)
		}
		if _, err := posts.Update(ctx, post.ID, map[string]any{
			"status": models.PostStatusPublished,
		}); err != nil {
			return fmt.Errorf("failed to publish seeded post: %w", err)
		}
		created++
	}

	for i := 0; i < opts.NumDrafts; i++ {
		if _, err := posts.Create(ctx, demoPost(models.PostStatusDraft)); err != nil {
			return fmt.Errorf("failed to seed draft: %w", err)
		}
		created++
	}

	log.Printf("Seeded %d demo posts (%d published, %d drafts)",
		created, opts.NumPublished, opts.NumDrafts)
	return nil
}

func demoPost(status string) repository.CreatePostInput {
	paragraphs := make([]string, 0, 3)
	for p := 0; p < 3; p++ {
		paragraphs = append(paragraphs, gofakeit.Paragraph(1, 3, 8, " "))
	}
	return repository.CreatePostInput{
		Title:  strings.TrimSuffix(gofakeit.Sentence(5), "."),
		Body:   strings.Join(paragraphs, "\n\n"),
		Status: status,
	}
}
