package models

import "time"

// Image modes describe how an image was produced. Blend and iterate
// images carry a parent link to the image they were derived from.
const (
	ImageModeInitial = "initial"
	ImageModeBlend   = "blend"
	ImageModeIterate = "iterate"
)

// Image is a stored picture owned by a post. ParentImageID forms a
// forest over images: a derived image points at the image it started
// from, and parents are never reassigned, so no cycle can occur.
// Images are never updated in place and are deleted only through the
// owning post's cascade.
type Image struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PostID        *uint     `gorm:"index" json:"post_id"`
	FilePath      string    `gorm:"not null" json:"file_path"`
	Prompt        *string   `json:"prompt"`
	ParentImageID *uint     `json:"parent_image_id"`
	Mode          string    `gorm:"not null;default:initial" json:"mode"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizeImageMode maps absent or unrecognized modes to initial.
func NormalizeImageMode(mode string) string {
	switch mode {
	case ImageModeBlend, ImageModeIterate:
		return mode
	default:
		return ImageModeInitial
	}
}
