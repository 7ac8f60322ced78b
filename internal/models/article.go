package models

import (
	"time"

	"gorm.io/gorm"
)

// Article status constants
const (
	ArticleStatusDraft     = "draft"
	ArticleStatusPublished = "published"
	ArticleStatusArchived  = "archived"
)

// Article is a generated news article. Content is markdown without a top-level
// heading; the title is rendered separately by the site.
type Article struct {
	gorm.Model
	Title           string `gorm:"not null"`
	Slug            string `gorm:"uniqueIndex;not null"`
	Content         string `gorm:"type:text;not null"`
	Summary         string `gorm:"type:text"`
	MetaDescription string
	Image           *string
	SourceURL       *string    `gorm:"column:source_url;index"`
	Status          string     `gorm:"not null;default:'draft';index"`
	PublishedDate   *time.Time `gorm:"index"`

	Categories []Category `gorm:"many2many:article_categories;"`
}
