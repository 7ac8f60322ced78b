package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkrogh/tidende/internal/ai"
	"github.com/mkrogh/tidende/internal/prompts"
)

// Per-item outcome labels in a discovery report.
const (
	OutcomePublished = "published"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// ItemOutcome records how one candidate fared.
type ItemOutcome struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	Slug   string `json:"slug,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates one discovery run. Surfaced to operational monitoring,
// never to end users.
type Report struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Total      int           `json:"total"`
	Published  int           `json:"published"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Items      []ItemOutcome `json:"items"`
}

// Discovery finds news candidates and feeds them one at a time through the
// synthesis pipeline. Items are processed sequentially with a cooldown to
// stay under provider rate limits; a single item's failure never aborts the
// batch.
type Discovery struct {
	text     ai.TextService
	prompts  *prompts.Store
	synth    *Synthesizer
	cooldown time.Duration
	logger   *slog.Logger
}

// NewDiscovery wires the discovery task.
func NewDiscovery(text ai.TextService, promptStore *prompts.Store, synth *Synthesizer, cooldown time.Duration, logger *slog.Logger) *Discovery {
	return &Discovery{
		text:     text,
		prompts:  promptStore,
		synth:    synth,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Run performs one discovery batch. A discovery-response parse failure is
// fatal for the whole batch: no article processing happens on guessed input.
// Cancellation is honored at item boundaries; the partial report is returned
// alongside the context error.
func (d *Discovery) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	fetchPrompt := d.prompts.Render(prompts.KeyNewsFetch, nil)
	raw, err := d.text.Generate(ctx, fetchPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("news fetch failed: %w", err)
	}

	items, err := ParseNewsItems(raw)
	if err != nil {
		return nil, err
	}

	report.Total = len(items)
	d.logger.Info("Discovery run started", "run_id", report.RunID, "items", len(items))

	for i, item := range items {
		if i > 0 {
			select {
			case <-time.After(d.cooldown):
			case <-ctx.Done():
				report.FinishedAt = time.Now().UTC()
				return report, ctx.Err()
			}
		}

		result := d.synth.Process(ctx, item)
		outcome := ItemOutcome{Title: item.Title, Slug: result.Slug}
		switch {
		case result.Duplicate:
			outcome.Status = OutcomeDuplicate
			report.Duplicates++
		case result.Success:
			outcome.Status = OutcomePublished
			report.Published++
		default:
			outcome.Status = OutcomeFailed
			outcome.Error = result.Err
			report.Failed++
		}
		report.Items = append(report.Items, outcome)
	}

	report.FinishedAt = time.Now().UTC()
	d.logger.Info("Discovery run finished",
		"run_id", report.RunID,
		"published", report.Published,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
	)
	return report, nil
}
