package models

import "gorm.io/gorm"

// Prompt is a versioned text template keyed by stage name. The highest
// version for a key wins. Bodies use {{name}} placeholders.
type Prompt struct {
	gorm.Model
	Key     string `gorm:"not null;uniqueIndex:idx_prompts_key_version"`
	Version int    `gorm:"not null;default:1;uniqueIndex:idx_prompts_key_version"`
	Body    string `gorm:"type:text;not null"`
}
