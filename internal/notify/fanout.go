package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/mkrogh/tidende/internal/articles"
	"github.com/mkrogh/tidende/internal/models"
	"gorm.io/gorm"
)

// digestWindow is the trailing period the weekly digest covers.
const digestWindow = 7 * 24 * time.Hour

// Per-recipient outcome labels.
const (
	SendStatusSent        = "sent"
	SendStatusFailed      = "failed"
	SendStatusRateLimited = "rate_limited"
)

// SendOutcome records one candidate send.
type SendOutcome struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates one fan-out run.
type Summary struct {
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	RateLimited int           `json:"rateLimited"`
	Details     []SendOutcome `json:"details,omitempty"`
}

// Fanout matches published articles to subscriber preferences and dispatches
// notifications. Both entry points share the category-intersection rule and
// the rate limiter; transport failures are per-recipient and never abort a
// batch.
type Fanout struct {
	db      *gorm.DB
	store   *articles.Store
	limiter *RateLimiter
	sender  Sender
	siteURL string
	logger  *slog.Logger
}

// NewFanout wires the notification fan-out.
func NewFanout(db *gorm.DB, store *articles.Store, limiter *RateLimiter, sender Sender, siteURL string, logger *slog.Logger) *Fanout {
	return &Fanout{
		db:      db,
		store:   store,
		limiter: limiter,
		sender:  sender,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger,
	}
}

// Matches applies the category-intersection rule: a subscriber matches when
// they opted into all categories, or their explicit set shares a member with
// the article's set. An explicit empty set matches nothing.
func Matches(sub models.Subscriber, articleCategoryIDs map[uint]struct{}) bool {
	if sub.AllCategories {
		return true
	}
	if len(sub.Categories) == 0 {
		return false
	}
	for _, c := range sub.Categories {
		if _, ok := articleCategoryIDs[c.ID]; ok {
			return true
		}
	}
	return false
}

// NotifyPublished runs the immediate path for one newly published article.
func (f *Fanout) NotifyPublished(ctx context.Context, articleID uint) (*Summary, error) {
	article, err := f.store.GetWithCategories(ctx, articleID)
	if err != nil {
		return nil, err
	}

	subs, err := f.subscribersByFrequency(ctx, models.FrequencyImmediate)
	if err != nil {
		return nil, err
	}

	catIDs := categoryIDSet(article.Categories)
	summary := &Summary{}
	subject := article.Title
	body := f.articleBody(article)

	for _, sub := range subs {
		if !Matches(sub, catIDs) {
			continue
		}
		f.trySend(ctx, summary, sub, subject, body, models.EmailKindImmediate)
	}

	f.logger.Info("Immediate fan-out finished",
		"article_id", articleID,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"rate_limited", summary.RateLimited,
	)
	return summary, nil
}

// WeeklyDigest runs the weekly path over articles published in the trailing
// 7 days. An empty window sends nothing and never touches the transport.
func (f *Fanout) WeeklyDigest(ctx context.Context) (*Summary, error) {
	since := time.Now().UTC().Add(-digestWindow)
	published, err := f.store.PublishedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	if len(published) == 0 {
		f.logger.Info("Weekly digest: no articles in window, skipping")
		return summary, nil
	}

	subs, err := f.subscribersByFrequency(ctx, models.FrequencyWeekly)
	if err != nil {
		return nil, err
	}

	for _, sub := range subs {
		matching := matchingArticles(sub, published)
		// No matches means no email, not an empty digest.
		if len(matching) == 0 {
			continue
		}
		subject := fmt.Sprintf("Ugens nyheder fra Tidende (%d artikler)", len(matching))
		f.trySend(ctx, summary, sub, subject, f.digestBody(matching), models.EmailKindDigest)
	}

	f.logger.Info("Weekly digest finished",
		"articles", len(published),
		"sent", summary.Sent,
		"failed", summary.Failed,
		"rate_limited", summary.RateLimited,
	)
	return summary, nil
}

// trySend applies the rate limit, dispatches, and logs the send. Only
// successful sends append an email log row.
func (f *Fanout) trySend(ctx context.Context, summary *Summary, sub models.Subscriber, subject, body, kind string) {
	now := time.Now().UTC()

	ok, err := f.limiter.Allow(ctx, sub.ID, now)
	if err != nil {
		summary.Failed++
		summary.Details = append(summary.Details, SendOutcome{Email: sub.Email, Status: SendStatusFailed, Error: err.Error()})
		return
	}
	if !ok {
		f.logger.Info("Send skipped, rate limit reached", "email", sub.Email)
		summary.RateLimited++
		summary.Details = append(summary.Details, SendOutcome{Email: sub.Email, Status: SendStatusRateLimited})
		return
	}

	if err := f.sender.Send(sub.Email, subject, body); err != nil {
		f.logger.Error("Email send failed", "email", sub.Email, "error", err.Error())
		summary.Failed++
		summary.Details = append(summary.Details, SendOutcome{Email: sub.Email, Status: SendStatusFailed, Error: err.Error()})
		return
	}

	if err := f.limiter.Record(ctx, sub.ID, kind, now); err != nil {
		// The mail went out; a logging failure must not flip the outcome.
		f.logger.Error("Failed to record email log", "email", sub.Email, "error", err.Error())
	}
	summary.Sent++
	summary.Details = append(summary.Details, SendOutcome{Email: sub.Email, Status: SendStatusSent})
}

func (f *Fanout) subscribersByFrequency(ctx context.Context, frequency string) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := f.db.WithContext(ctx).
		Preload("Categories").
		Where("email_frequency = ?", frequency).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}
	return subs, nil
}

func matchingArticles(sub models.Subscriber, published []models.Article) []models.Article {
	if sub.AllCategories {
		return published
	}
	var matching []models.Article
	for _, article := range published {
		if Matches(sub, categoryIDSet(article.Categories)) {
			matching = append(matching, article)
		}
	}
	return matching
}

func categoryIDSet(categories []models.Category) map[uint]struct{} {
	set := make(map[uint]struct{}, len(categories))
	for _, c := range categories {
		set[c.ID] = struct{}{}
	}
	return set
}

func (f *Fanout) articleBody(article *models.Article) string {
	var sb strings.Builder
	sb.WriteString("<h1>" + html.EscapeString(article.Title) + "</h1>")
	if article.Summary != "" {
		sb.WriteString("<p>" + html.EscapeString(article.Summary) + "</p>")
	}
	sb.WriteString(fmt.Sprintf(`<p><a href="%s/artikler/%s">Læs hele artiklen</a></p>`, f.siteURL, article.Slug))
	return sb.String()
}

func (f *Fanout) digestBody(published []models.Article) string {
	var sb strings.Builder
	sb.WriteString("<h1>Ugens nyheder</h1>")
	for _, article := range published {
		sb.WriteString("<h2>" + html.EscapeString(article.Title) + "</h2>")
		if article.Summary != "" {
			sb.WriteString("<p>" + html.EscapeString(article.Summary) + "</p>")
		}
		sb.WriteString(fmt.Sprintf(`<p><a href="%s/artikler/%s">Læs mere</a></p>`, f.siteURL, article.Slug))
	}
	return sb.String()
}
