package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskRun keeps one row per completed background run, with the structured
// report as JSONB, for operational history beyond the latest-run cache.
type TaskRun struct {
	gorm.Model
	Kind   string         `gorm:"not null;index"`
	Report datatypes.JSON `gorm:"type:jsonb"`
}
