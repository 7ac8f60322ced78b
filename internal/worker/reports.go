package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkrogh/tidende/internal/notify"
	"github.com/mkrogh/tidende/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

// Redis keys for the last-run reports served by the ops API.
const (
	keyDiscoveryReport = "tidende:reports:discovery"
	keyNotifyReport    = "tidende:reports:notify"
)

// ReportCache keeps the most recent run reports in Redis so the ops API can
// serve them without touching the database.
type ReportCache struct {
	rdb *redis.Client
}

// NewReportCache creates a report cache on a dedicated Redis connection,
// separate from the Asynq internal one.
func NewReportCache(redisURL string) (*ReportCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &ReportCache{rdb: redis.NewClient(opts)}, nil
}

// Close releases the Redis connection.
func (c *ReportCache) Close() error {
	return c.rdb.Close()
}

// SaveDiscovery stores the latest discovery report.
func (c *ReportCache) SaveDiscovery(ctx context.Context, report *pipeline.Report) error {
	return c.save(ctx, keyDiscoveryReport, report)
}

// LoadDiscovery returns the latest discovery report, or nil when none exists.
func (c *ReportCache) LoadDiscovery(ctx context.Context) (*pipeline.Report, error) {
	var report pipeline.Report
	ok, err := c.load(ctx, keyDiscoveryReport, &report)
	if err != nil || !ok {
		return nil, err
	}
	return &report, nil
}

// SaveNotify stores the latest fan-out summary.
func (c *ReportCache) SaveNotify(ctx context.Context, summary *notify.Summary) error {
	return c.save(ctx, keyNotifyReport, summary)
}

// LoadNotify returns the latest fan-out summary, or nil when none exists.
func (c *ReportCache) LoadNotify(ctx context.Context) (*notify.Summary, error) {
	var summary notify.Summary
	ok, err := c.load(ctx, keyNotifyReport, &summary)
	if err != nil || !ok {
		return nil, err
	}
	return &summary, nil
}

func (c *ReportCache) save(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

func (c *ReportCache) load(ctx context.Context, key string, v interface{}) (bool, error) {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load report: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return true, nil
}
