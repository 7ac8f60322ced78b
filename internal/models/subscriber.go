package models

import "gorm.io/gorm"

// Email frequency constants
const (
	FrequencyImmediate = "immediate"
	FrequencyWeekly    = "weekly"
	FrequencyNone      = "none"
)

// Subscriber holds a reader's notification preferences. The subscriber tables
// are owned by the CMS side of the system; this service only reads them.
// A subscriber with AllCategories=false and no selected categories never
// matches any article.
type Subscriber struct {
	gorm.Model
	Email          string `gorm:"uniqueIndex;not null"`
	Name           string `gorm:"not null;default:''"`
	EmailFrequency string `gorm:"not null;default:'none';index"`
	AllCategories  bool   `gorm:"not null;default:false"`

	Categories []Category `gorm:"many2many:subscriber_categories;"`
}
