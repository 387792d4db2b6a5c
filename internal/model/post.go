package model

import (
	"time"

	"gorm.io/datatypes"
)

// PostStatus marks the editorial state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Post is a stored article. Slug is unique across all posts; Content is
// markdown-like text and may be empty (empty content yields zero metrics).
type Post struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Title       string                      `json:"title"`
	Slug        string                      `gorm:"uniqueIndex" json:"slug"`
	Content     string                      `json:"content"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Category    string                      `gorm:"index" json:"category"`
	AuthorID    uint                        `json:"author_id"`
	Author      Author                      `json:"author"`
	Status      PostStatus                  `gorm:"index" json:"status"`
	PublishedAt time.Time                   `json:"published_at"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// Author writes posts. Bio and Image are optional; their absence scores as a
// zero authority contribution, not an error.
type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Image     string    `json:"image"`
	Twitter   string    `json:"twitter"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category groups posts for navigation, FAQ lookup and expansion advice.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `json:"name"`
	Slug        string    `gorm:"uniqueIndex" json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchStat holds one day of search-console metrics for a page path.
type SearchStat struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Date        string    `gorm:"uniqueIndex:idx_stat_date_path" json:"date"`
	Path        string    `gorm:"uniqueIndex:idx_stat_date_path" json:"path"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
