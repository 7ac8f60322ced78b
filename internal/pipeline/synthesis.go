package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/mkrogh/tidende/internal/ai"
	"github.com/mkrogh/tidende/internal/articles"
	"github.com/mkrogh/tidende/internal/models"
	"github.com/mkrogh/tidende/internal/prompts"
)

// metaDescriptionLimit caps the fallback meta description length.
const metaDescriptionLimit = 160

// fallbackCategory labels articles whose metadata stage produced no usable
// category list.
const fallbackCategory = "Nyheder"

// Result is the outcome of synthesizing one news item.
type Result struct {
	Success   bool
	Duplicate bool
	ArticleID uint
	Slug      string
	Err       string
}

// Enqueuer schedules the post-publish tasks. Both are best-effort: a failed
// enqueue is logged and never rolls back the publication.
type Enqueuer interface {
	EnqueueArticleImage(articleID uint, title string) error
	EnqueueImmediateNotify(articleID uint) error
}

// Synthesizer runs the per-item pipeline:
// dedup → research → writing → metadata → persistence → category links,
// then hands image generation and notification off as separate tasks.
type Synthesizer struct {
	text     ai.TextService
	prompts  *prompts.Store
	store    *articles.Store
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewSynthesizer wires the synthesis pipeline. enqueuer may be nil, in which
// case no post-publish tasks are scheduled (used by tests).
func NewSynthesizer(text ai.TextService, promptStore *prompts.Store, store *articles.Store, enqueuer Enqueuer, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		text:     text,
		prompts:  promptStore,
		store:    store,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Process synthesizes one news item into a published article. Stage failures
// are terminal for this item only; the batch continues.
func (s *Synthesizer) Process(ctx context.Context, item NewsItem) Result {
	sourceURL := ""
	if len(item.Sources) > 0 {
		sourceURL = item.Sources[0]
	}

	// Dedup runs before any paid AI call.
	existing, err := s.store.FindDuplicate(ctx, item.Title, sourceURL)
	if err != nil {
		return s.failure(item, fmt.Errorf("dedup check failed: %w", err))
	}
	if existing != nil {
		s.logger.Info("Skipping duplicate news item",
			"title", item.Title,
			"existing_slug", existing.Slug,
		)
		return Result{Duplicate: true, ArticleID: existing.ID, Slug: existing.Slug}
	}

	// Research: search-augmented, non-empty output required.
	researchPrompt := s.prompts.Render(prompts.KeyArticleResearch, prompts.Vars(
		"title", item.Title,
		"summary", item.Summary,
		"sources", prompts.JoinSources(item.Sources),
		"date", item.Date,
	))
	research, err := s.text.Generate(ctx, researchPrompt, true)
	if err != nil {
		return s.failure(item, fmt.Errorf("research stage failed: %w", err))
	}
	if strings.TrimSpace(research) == "" {
		return s.failure(item, errors.New("research stage returned empty output"))
	}

	// Writing: plain generation, non-empty markdown required.
	writingPrompt := s.prompts.Render(prompts.KeyArticleWriting, prompts.Vars(
		"title", item.Title,
		"summary", item.Summary,
		"researchFindings", research,
	))
	content, err := s.text.Generate(ctx, writingPrompt, false)
	if err != nil {
		return s.failure(item, fmt.Errorf("writing stage failed: %w", err))
	}
	if strings.TrimSpace(content) == "" {
		return s.failure(item, errors.New("writing stage returned empty output"))
	}

	// Metadata: the only stage with a non-AI fallback.
	meta := s.extractMetadata(ctx, item, content)

	now := time.Now().UTC()
	article := models.Article{
		Title:           item.Title,
		Slug:            meta.slug,
		Content:         content,
		Summary:         meta.summary,
		MetaDescription: meta.metaDescription,
		Status:          models.ArticleStatusPublished,
		PublishedDate:   &now,
	}
	if sourceURL != "" {
		article.SourceURL = &sourceURL
	}

	if err := s.store.Publish(ctx, &article, meta.categories); err != nil {
		if errors.Is(err, articles.ErrSlugTaken) {
			return s.failure(item, fmt.Errorf("slug %q already exists: %w", meta.slug, err))
		}
		return s.failure(item, fmt.Errorf("persistence failed: %w", err))
	}

	s.logger.Info("Published article",
		"article_id", article.ID,
		"slug", article.Slug,
		"categories", strings.Join(meta.categories, ","),
	)

	// Image generation and immediate notification run as separate tasks so
	// their failures cannot block or roll back the publication.
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueArticleImage(article.ID, article.Title); err != nil {
			s.logger.Error("Failed to enqueue image task", "article_id", article.ID, "error", err.Error())
		}
		if err := s.enqueuer.EnqueueImmediateNotify(article.ID); err != nil {
			s.logger.Error("Failed to enqueue notify task", "article_id", article.ID, "error", err.Error())
		}
	}

	return Result{Success: true, ArticleID: article.ID, Slug: article.Slug}
}

func (s *Synthesizer) failure(item NewsItem, err error) Result {
	s.logger.Error("News item synthesis failed", "title", item.Title, "error", err.Error())
	return Result{Err: err.Error()}
}

type articleMeta struct {
	slug            string
	metaDescription string
	summary         string
	categories      []string
}

// extractMetadata asks the model for article metadata and falls back to a
// deterministic derivation when the response is not usable JSON. Metadata is
// structurally simple; losing it must not block publication.
func (s *Synthesizer) extractMetadata(ctx context.Context, item NewsItem, content string) articleMeta {
	metadataPrompt := s.prompts.Render(prompts.KeyArticleMetadata, prompts.Vars(
		"articleContent", content,
	))

	raw, err := s.text.Generate(ctx, metadataPrompt, false)
	if err != nil {
		s.logger.Warn("Metadata stage failed, using fallback", "title", item.Title, "error", err.Error())
		return fallbackMeta(item)
	}

	var parsed struct {
		Slug            string `json:"slug"`
		MetaDescription string `json:"metaDescription"`
		Summary         string `json:"summary"`
		Categories      string `json:"categories"`
	}
	extracted := ai.ExtractJSON(raw)
	if extracted == "" || json.Unmarshal([]byte(extracted), &parsed) != nil || parsed.Slug == "" {
		s.logger.Warn("Metadata response not parseable, using fallback", "title", item.Title)
		return fallbackMeta(item)
	}

	summary := parsed.Summary
	if summary == "" {
		summary = item.Summary
	}
	return articleMeta{
		slug:            parsed.Slug,
		metaDescription: parsed.MetaDescription,
		summary:         summary,
		categories:      SplitCategories(parsed.Categories),
	}
}

func fallbackMeta(item NewsItem) articleMeta {
	return articleMeta{
		slug:            slug.Make(item.Title),
		metaDescription: truncate(item.Summary, metaDescriptionLimit),
		summary:         item.Summary,
		categories:      []string{fallbackCategory},
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
