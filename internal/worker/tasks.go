package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskNewsDiscover    = "news:discover"
	TaskWeeklyDigest    = "digest:weekly"
	TaskNotifyImmediate = "notify:immediate"
	TaskArticleImage    = "article:image"
)

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before any EnqueueX functions.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// EnqueueNewsDiscover triggers a discovery run outside the daily schedule.
// Not retried: a failed run is re-covered by the next scheduled one.
func EnqueueNewsDiscover() error {
	task := asynq.NewTask(
		TaskNewsDiscover,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(60*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	_, err := client.Enqueue(task)
	return err
}

// EnqueueNotifyImmediate schedules the immediate notification fan-out for a
// newly published article.
func EnqueueNotifyImmediate(articleID uint) error {
	payload, err := json.Marshal(map[string]uint{"article_id": articleID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskNotifyImmediate,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	_, err = client.Enqueue(task)
	return err
}

// EnqueueArticleImage schedules best-effort hero image generation for a
// published article. The retry policy for the provider call lives inside the
// image client, so the task itself is not retried.
func EnqueueArticleImage(articleID uint, title string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"article_id": articleID,
		"title":      title,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskArticleImage,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	_, err = client.Enqueue(task)
	return err
}

// QueueEnqueuer adapts the package-level enqueue functions to the pipeline's
// Enqueuer interface.
type QueueEnqueuer struct{}

func (QueueEnqueuer) EnqueueArticleImage(articleID uint, title string) error {
	return EnqueueArticleImage(articleID, title)
}

func (QueueEnqueuer) EnqueueImmediateNotify(articleID uint) error {
	return EnqueueNotifyImmediate(articleID)
}
