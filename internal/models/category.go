package models

import "gorm.io/gorm"

// Category is a fixed-ish vocabulary of article topics. Names and slugs are
// unique; the synthesis pipeline links articles to existing categories by
// exact name only.
type Category struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	HeroImage   *string
}
