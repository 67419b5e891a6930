package domain

import (
	"errors"
	"time"
)

var (
	ErrPageNotFound      = errors.New("page not found")
	ErrPageAlreadyExists = errors.New("page already exists")
	ErrRevisionNotFound  = errors.New("revision not found")
	ErrAlreadyVoted      = errors.New("already voted")
)

// NoLink marks a page without a linked forum thread or gallery album.
const NoLink int64 = -1

// Page is one named, versioned article.
type Page struct {
	ID              uint64    `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	DisplayName     string    `gorm:"size:128;index;not null" json:"display_name"`
	HideDisplayName bool      `gorm:"default:false;index" json:"hide_display_name"`
	CreatedAt       time.Time `json:"created"`
	Private         bool      `gorm:"default:false;index" json:"private"`
	ViewCount       int64     `gorm:"default:0;index" json:"view_count"`
	ThreadID        int64     `gorm:"not null;default:-1" json:"thread_id"`
	AlbumID         int64     `gorm:"not null;default:-1" json:"album_id"`
	RendererID      uint64    `gorm:"not null;default:1;index" json:"renderer_id"`
}

func (Page) TableName() string { return "article_pages" }

// Title is the display name, or the page name when no display name was given.
func (p *Page) Title() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// NewPage returns a page without linked forum or gallery resources.
func NewPage(name, displayName string) *Page {
	return &Page{
		Name:        name,
		DisplayName: displayName,
		ThreadID:    NoLink,
		AlbumID:     NoLink,
	}
}

// Revision is an immutable content snapshot of a page.
type Revision struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	PageID    uint64    `gorm:"not null;index" json:"page_id"`
	Content   string    `gorm:"type:text;default:''" json:"content"`
	Summary   string    `gorm:"size:128;index;not null" json:"summary"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time `gorm:"index" json:"created"`
}

func (Revision) TableName() string { return "article_revisions" }

// Vote is a like or dislike of a page, at most one per user.
type Vote struct {
	ID     uint64 `gorm:"primaryKey" json:"id"`
	PageID uint64 `gorm:"not null;uniqueIndex:idx_article_votes_user_page" json:"page_id"`
	UserID uint64 `gorm:"not null;uniqueIndex:idx_article_votes_user_page" json:"user_id"`
	Like   bool   `gorm:"column:is_like;not null;index" json:"like"`
}

func (Vote) TableName() string { return "article_votes" }

type Tag struct {
	ID     uint64 `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"size:128;index;not null" json:"name"`
	PageID uint64 `gorm:"not null;index" json:"page_id"`
}

func (Tag) TableName() string { return "article_tags" }

// Renderer is the markup format a page is rendered with.
type Renderer struct {
	ID   uint64 `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:128;uniqueIndex;not null" json:"name"`
}

func (Renderer) TableName() string { return "article_renderers" }
