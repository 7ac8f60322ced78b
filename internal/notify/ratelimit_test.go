package notify

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mkrogh/tidende/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCap = 10

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Article{}, &models.Category{}, &models.Subscriber{}, &models.EmailLog{},
	))
	return db
}

func seedEmailLogs(t *testing.T, db *gorm.DB, subscriberID uint, n int, sentAt time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.EmailLog{
			SubscriberID: subscriberID,
			SentAt:       sentAt,
			Kind:         models.EmailKindImmediate,
		}).Error)
	}
}

func TestAllowUnderCap(t *testing.T) {
	db := newTestDB(t)
	limiter := NewRateLimiter(db, testCap)
	now := time.Now().UTC()

	seedEmailLogs(t, db, 1, testCap-1, now.Add(-time.Hour))

	ok, err := limiter.Allow(context.Background(), 1, now)
	require.NoError(t, err)
	assert.True(t, ok, "one slot left means the send is allowed")
}

func TestAllowAtCap(t *testing.T) {
	db := newTestDB(t)
	limiter := NewRateLimiter(db, testCap)
	now := time.Now().UTC()

	seedEmailLogs(t, db, 1, testCap, now.Add(-time.Hour))

	ok, err := limiter.Allow(context.Background(), 1, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowIgnoresLogsOutsideWindow(t *testing.T) {
	db := newTestDB(t)
	limiter := NewRateLimiter(db, testCap)
	now := time.Now().UTC()

	seedEmailLogs(t, db, 1, testCap+1, now.Add(-25*time.Hour))

	ok, err := limiter.Allow(context.Background(), 1, now)
	require.NoError(t, err)
	assert.True(t, ok, "sends older than the window must not count")
}

func TestAllowCountsPerSubscriber(t *testing.T) {
	db := newTestDB(t)
	limiter := NewRateLimiter(db, testCap)
	now := time.Now().UTC()

	seedEmailLogs(t, db, 1, testCap, now.Add(-time.Hour))

	ok, err := limiter.Allow(context.Background(), 2, now)
	require.NoError(t, err)
	assert.True(t, ok, "another subscriber's sends must not count")
}

func TestRecordThenAllowReachesCap(t *testing.T) {
	db := newTestDB(t)
	limiter := NewRateLimiter(db, 2)
	now := time.Now().UTC()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, 1, now)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, limiter.Record(ctx, 1, models.EmailKindDigest, now))
	}

	ok, err := limiter.Allow(ctx, 1, now)
	require.NoError(t, err)
	assert.False(t, ok)

	var count int64
	require.NoError(t, db.Model(&models.EmailLog{}).Where("kind = ?", models.EmailKindDigest).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
