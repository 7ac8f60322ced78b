package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mkrogh/tidende/internal/config"
)

// StartScheduler creates and starts an Asynq Scheduler for the periodic
// tasks: daily news discovery and the weekly digest fan-out.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Parse timezone from config
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("Invalid timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		location = time.UTC
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	// Daily discovery. Not retried: a fatal parse failure means the next
	// day's run is the retry. Unique prevents a double run if the scheduler
	// fires twice.
	discoverTask := asynq.NewTask(
		TaskNewsDiscover,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(60*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(12*time.Hour),
	)
	discoverID, err := scheduler.Register(cfg.DiscoverySchedule, discoverTask)
	if err != nil {
		return nil, fmt.Errorf("failed to register discovery schedule: %w", err)
	}

	// Weekly digest over the trailing 7 days.
	digestTask := asynq.NewTask(
		TaskWeeklyDigest,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(7*24*time.Hour),
		asynq.Unique(24*time.Hour),
	)
	digestID, err := scheduler.Register(cfg.DigestSchedule, digestTask)
	if err != nil {
		return nil, fmt.Errorf("failed to register digest schedule: %w", err)
	}

	// Start scheduler (non-blocking)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info(
		"Scheduler started",
		"discovery_schedule", cfg.DiscoverySchedule,
		"digest_schedule", cfg.DigestSchedule,
		"timezone", cfg.Timezone,
		"discovery_entry_id", discoverID,
		"digest_entry_id", digestID,
	)

	return func() { scheduler.Shutdown() }, nil
}
