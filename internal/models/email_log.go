package models

import "time"

// Email kind constants
const (
	EmailKindImmediate = "immediate"
	EmailKindDigest    = "digest"
)

// EmailLog records one successful send per row. Append-only; the rate limiter
// counts rows in the trailing 24-hour window per subscriber. Rows are never
// deleted by this service.
type EmailLog struct {
	ID           uint      `gorm:"primarykey"`
	SubscriberID uint      `gorm:"not null;index:idx_email_logs_subscriber_sent"`
	SentAt       time.Time `gorm:"not null;index:idx_email_logs_subscriber_sent"`
	Kind         string    `gorm:"not null;default:''"`
}
