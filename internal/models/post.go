package models

import "time"

// Post statuses. A post starts as a draft and may be published; the API
// never moves a published post back to draft.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post is a text entry with an optional cover image and a draft/published
// lifecycle.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"not null;default:Untitled" json:"title"`
	Body       string    `gorm:"not null" json:"body"`
	CoverImage *string   `json:"cover_image"`
	Status     string    `gorm:"not null;default:draft" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ValidPostStatus reports whether s is a recognized post status.
func ValidPostStatus(s string) bool {
	return s == PostStatusDraft || s == PostStatusPublished
}
