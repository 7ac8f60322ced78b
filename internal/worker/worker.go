package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mkrogh/tidende/internal/ai"
	"github.com/mkrogh/tidende/internal/articles"
	"github.com/mkrogh/tidende/internal/config"
	"github.com/mkrogh/tidende/internal/models"
	"github.com/mkrogh/tidende/internal/notify"
	"github.com/mkrogh/tidende/internal/pipeline"
	"github.com/mkrogh/tidende/internal/prompts"
	"github.com/mkrogh/tidende/internal/storage"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Deps carries everything the task handlers need.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Discovery *pipeline.Discovery
	Fanout    *notify.Fanout
	Prompts   *prompts.Store
	Image     ai.ImageService
	Blob      storage.BlobStore
	Store     *articles.Store
	Reports   *ReportCache
}

// Start starts the Asynq worker in non-blocking mode and returns a stop
// function so the caller can coordinate shutdown.
func Start(deps *Deps) (stop func(), err error) {
	srv, mux, err := newServer(deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(deps *Deps) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(deps.Config.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(deps.Config.LogLevel, deps.Config.LogFormat)

	// Concurrency 1: the AI and image providers enforce rate limits that
	// parallel pipelines would violate. Fan-out tasks inherit the same
	// seriality, which the rate limiter relies on.
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     1,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNewsDiscover, handleNewsDiscover(logger, deps))
	mux.HandleFunc(TaskWeeklyDigest, handleWeeklyDigest(logger, deps))
	mux.HandleFunc(TaskNotifyImmediate, handleNotifyImmediate(logger, deps))
	mux.HandleFunc(TaskArticleImage, handleArticleImage(logger, deps))

	logger.Info("Worker starting", "concurrency", 1, "redis", deps.Config.RedisURL)
	return srv, mux, nil
}

// handleNewsDiscover runs one discovery batch and caches its report. A parse
// failure is fatal for the batch; the task is registered without retries so
// the next scheduled run is the retry.
func handleNewsDiscover(logger *slog.Logger, deps *Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		logger.Info("Processing news:discover task")

		report, err := deps.Discovery.Run(ctx)
		if report != nil {
			if cacheErr := deps.Reports.SaveDiscovery(ctx, report); cacheErr != nil {
				logger.Error("Failed to cache discovery report", "error", cacheErr.Error())
			}
			recordRun(ctx, deps.DB, logger, TaskNewsDiscover, report)
		}
		if err != nil {
			return fmt.Errorf("discovery run failed: %w", err)
		}
		return nil
	}
}

// handleWeeklyDigest runs the weekly fan-out path.
func handleWeeklyDigest(logger *slog.Logger, deps *Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		logger.Info("Processing digest:weekly task")

		summary, err := deps.Fanout.WeeklyDigest(ctx)
		if err != nil {
			return fmt.Errorf("weekly digest failed: %w", err)
		}
		if cacheErr := deps.Reports.SaveNotify(ctx, summary); cacheErr != nil {
			logger.Error("Failed to cache digest summary", "error", cacheErr.Error())
		}
		recordRun(ctx, deps.DB, logger, TaskWeeklyDigest, summary)
		return nil
	}
}

// handleNotifyImmediate runs the immediate fan-out path for one article.
func handleNotifyImmediate(logger *slog.Logger, deps *Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload struct {
			ArticleID uint `json:"article_id"`
		}
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing notify:immediate task", "article_id", payload.ArticleID)

		summary, err := deps.Fanout.NotifyPublished(ctx, payload.ArticleID)
		if err != nil {
			// Failed immediate notifications are not retried; the article
			// stays published either way.
			logger.Error("Immediate fan-out failed", "article_id", payload.ArticleID, "error", err.Error())
			return fmt.Errorf("immediate fan-out failed: %w", asynq.SkipRetry)
		}
		if cacheErr := deps.Reports.SaveNotify(ctx, summary); cacheErr != nil {
			logger.Error("Failed to cache fan-out summary", "error", cacheErr.Error())
		}
		recordRun(ctx, deps.DB, logger, TaskNotifyImmediate, summary)
		return nil
	}
}

// handleArticleImage generates and attaches a hero image. Strictly
// best-effort: every failure is logged and swallowed so the published
// article is never affected.
func handleArticleImage(logger *slog.Logger, deps *Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload struct {
			ArticleID uint   `json:"article_id"`
			Title     string `json:"title"`
		}
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing article:image task", "article_id", payload.ArticleID)

		prompt := deps.Prompts.Render(prompts.KeyImageGeneration, prompts.Vars("title", payload.Title))

		data, contentType, err := deps.Image.Generate(ctx, prompt)
		if err != nil {
			logger.Error("Image generation failed, article stays without image",
				"article_id", payload.ArticleID, "error", err.Error())
			return nil
		}

		filename := storage.ObjectName(payload.ArticleID, contentType, time.Now().UTC())
		url, err := deps.Blob.Upload(ctx, filename, data, contentType)
		if err != nil {
			logger.Error("Image upload failed, article stays without image",
				"article_id", payload.ArticleID, "error", err.Error())
			return nil
		}

		if err := deps.Store.SetImage(ctx, payload.ArticleID, url); err != nil {
			logger.Error("Image column update failed, article stays without image",
				"article_id", payload.ArticleID, "error", err.Error())
			return nil
		}

		logger.Info("Article image attached", "article_id", payload.ArticleID, "url", url)
		return nil
	}
}

// recordRun appends one task_runs row for operational history. A write
// failure is logged; it never fails the task.
func recordRun(ctx context.Context, db *gorm.DB, logger *slog.Logger, kind string, report interface{}) {
	payload, err := json.Marshal(report)
	if err != nil {
		logger.Error("Failed to marshal run report", "kind", kind, "error", err.Error())
		return
	}
	run := models.TaskRun{Kind: kind, Report: datatypes.JSON(payload)}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		logger.Error("Failed to record task run", "kind", kind, "error", err.Error())
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
