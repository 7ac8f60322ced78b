package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrogh/tidende/internal/models"
	"gorm.io/gorm"
)

// rateLimitWindow is the trailing window the send count is computed over.
const rateLimitWindow = 24 * time.Hour

// RateLimiter caps successful sends per subscriber in a trailing 24-hour
// window. The count derives from email_logs; a skipped send is never queued
// for later retry.
type RateLimiter struct {
	db  *gorm.DB
	cap int
}

// NewRateLimiter creates a limiter with the given daily cap.
func NewRateLimiter(db *gorm.DB, cap int) *RateLimiter {
	return &RateLimiter{db: db, cap: cap}
}

// Allow reports whether the subscriber has a free slot at the given instant.
// Fan-out serializes sends per run, so check-then-record needs no lock here;
// a parallel fan-out would have to wrap Allow+Record in one transaction.
func (l *RateLimiter) Allow(ctx context.Context, subscriberID uint, now time.Time) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.EmailLog{}).
		Where("subscriber_id = ? AND sent_at > ?", subscriberID, now.Add(-rateLimitWindow)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("rate limit count failed: %w", err)
	}
	return count < int64(l.cap), nil
}

// Record appends one log row for a successful send.
func (l *RateLimiter) Record(ctx context.Context, subscriberID uint, kind string, now time.Time) error {
	log := models.EmailLog{
		SubscriberID: subscriberID,
		SentAt:       now,
		Kind:         kind,
	}
	if err := l.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("failed to record email log: %w", err)
	}
	return nil
}
