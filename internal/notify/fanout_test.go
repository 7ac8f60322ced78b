package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mkrogh/tidende/internal/articles"
	"github.com/mkrogh/tidende/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	to      string
	subject string
	body    string
}

// fakeSender records dispatched mail and can fail for chosen recipients.
type fakeSender struct {
	sent    []sentMail
	failFor map[string]error
}

func (f *fakeSender) Send(to, subject, body string) error {
	if err, ok := f.failFor[to]; ok {
		return err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func newFanout(db *gorm.DB, sender Sender) *Fanout {
	return NewFanout(db, articles.NewStore(db), NewRateLimiter(db, testCap), sender, "https://tidende.dk/", discardLogger())
}

func createCategory(t *testing.T, db *gorm.DB, name string) models.Category {
	t.Helper()
	cat := models.Category{Name: name, Slug: strings.ToLower(name)}
	require.NoError(t, db.Create(&cat).Error)
	return cat
}

func createPublished(t *testing.T, db *gorm.DB, slug string, publishedAt time.Time, cats ...models.Category) models.Article {
	t.Helper()
	article := models.Article{
		Title:         "Artikel " + slug,
		Slug:          slug,
		Content:       "indhold",
		Summary:       "resumé",
		Status:        models.ArticleStatusPublished,
		PublishedDate: &publishedAt,
		Categories:    cats,
	}
	require.NoError(t, db.Create(&article).Error)
	return article
}

func createSubscriber(t *testing.T, db *gorm.DB, email, frequency string, all bool, cats ...models.Category) models.Subscriber {
	t.Helper()
	sub := models.Subscriber{
		Email:          email,
		EmailFrequency: frequency,
		AllCategories:  all,
		Categories:     cats,
	}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func TestMatches(t *testing.T) {
	inv := models.Category{Model: gorm.Model{ID: 1}, Name: "Investering"}
	bolig := models.Category{Model: gorm.Model{ID: 2}, Name: "Bolig"}
	articleCats := map[uint]struct{}{inv.ID: {}}

	tests := []struct {
		name string
		sub  models.Subscriber
		want bool
	}{
		{"all categories", models.Subscriber{AllCategories: true}, true},
		{"overlapping explicit set", models.Subscriber{Categories: []models.Category{inv, bolig}}, true},
		{"disjoint explicit set", models.Subscriber{Categories: []models.Category{bolig}}, false},
		{"empty explicit set matches nothing", models.Subscriber{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.sub, articleCats))
		})
	}
}

func TestNotifyPublishedMatchesByCategory(t *testing.T) {
	db := newTestDB(t)
	inv := createCategory(t, db, "Investering")
	bolig := createCategory(t, db, "Bolig")
	article := createPublished(t, db, "ny-artikel", time.Now().UTC(), inv)

	createSubscriber(t, db, "alle@tidende.dk", models.FrequencyImmediate, true)
	createSubscriber(t, db, "inv@tidende.dk", models.FrequencyImmediate, false, inv)
	createSubscriber(t, db, "bolig@tidende.dk", models.FrequencyImmediate, false, bolig)
	createSubscriber(t, db, "tom@tidende.dk", models.FrequencyImmediate, false)
	createSubscriber(t, db, "ugentlig@tidende.dk", models.FrequencyWeekly, true)

	sender := &fakeSender{}
	summary, err := newFanout(db, sender).NotifyPublished(context.Background(), article.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 0, summary.Failed)

	var recipients []string
	for _, m := range sender.sent {
		recipients = append(recipients, m.to)
		assert.Equal(t, article.Title, m.subject)
		assert.Contains(t, m.body, "https://tidende.dk/artikler/ny-artikel")
	}
	assert.ElementsMatch(t, []string{"alle@tidende.dk", "inv@tidende.dk"}, recipients)
}

func TestNotifyPublishedTransportFailureDoesNotAbortBatch(t *testing.T) {
	db := newTestDB(t)
	inv := createCategory(t, db, "Investering")
	article := createPublished(t, db, "a1", time.Now().UTC(), inv)

	createSubscriber(t, db, "a@tidende.dk", models.FrequencyImmediate, true)
	createSubscriber(t, db, "b@tidende.dk", models.FrequencyImmediate, true)
	createSubscriber(t, db, "c@tidende.dk", models.FrequencyImmediate, true)

	sender := &fakeSender{failFor: map[string]error{"b@tidende.dk": errors.New("smtp: connection refused")}}
	summary, err := newFanout(db, sender).NotifyPublished(context.Background(), article.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	var failed SendOutcome
	for _, d := range summary.Details {
		if d.Status == SendStatusFailed {
			failed = d
		}
	}
	assert.Equal(t, "b@tidende.dk", failed.Email)
	assert.Contains(t, failed.Error, "connection refused")

	// Failed sends must not consume a rate-limit slot.
	var count int64
	require.NoError(t, db.Model(&models.EmailLog{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestNotifyPublishedSkipsRateLimitedSubscriber(t *testing.T) {
	db := newTestDB(t)
	inv := createCategory(t, db, "Investering")
	article := createPublished(t, db, "a1", time.Now().UTC(), inv)

	full := createSubscriber(t, db, "fuld@tidende.dk", models.FrequencyImmediate, true)
	createSubscriber(t, db, "fri@tidende.dk", models.FrequencyImmediate, true)
	seedEmailLogs(t, db, full.ID, testCap, time.Now().UTC().Add(-time.Hour))

	sender := &fakeSender{}
	summary, err := newFanout(db, sender).NotifyPublished(context.Background(), article.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.RateLimited)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "fri@tidende.dk", sender.sent[0].to)
}

func TestWeeklyDigestEmptyWindowNeverTouchesTransport(t *testing.T) {
	db := newTestDB(t)
	inv := createCategory(t, db, "Investering")
	// Published outside the 7-day window.
	createPublished(t, db, "gammel", time.Now().UTC().Add(-8*24*time.Hour), inv)
	createSubscriber(t, db, "a@tidende.dk", models.FrequencyWeekly, true)

	sender := &fakeSender{}
	summary, err := newFanout(db, sender).WeeklyDigest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, sender.sent)
}

func TestWeeklyDigestMatchesPerSubscriber(t *testing.T) {
	db := newTestDB(t)
	inv := createCategory(t, db, "Investering")
	bolig := createCategory(t, db, "Bolig")
	now := time.Now().UTC()
	createPublished(t, db, "inv-nyhed", now.Add(-time.Hour), inv)
	createPublished(t, db, "bolig-nyhed", now.Add(-2*time.Hour), bolig)

	createSubscriber(t, db, "alle@tidende.dk", models.FrequencyWeekly, true)
	createSubscriber(t, db, "inv@tidende.dk", models.FrequencyWeekly, false, inv)
	createSubscriber(t, db, "straks@tidende.dk", models.FrequencyImmediate, true)

	sender := &fakeSender{}
	summary, err := newFanout(db, sender).WeeklyDigest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sent)
	require.Len(t, sender.sent, 2)

	byRecipient := make(map[string]sentMail, len(sender.sent))
	for _, m := range sender.sent {
		byRecipient[m.to] = m
	}

	all, ok := byRecipient["alle@tidende.dk"]
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("Ugens nyheder fra Tidende (%d artikler)", 2), all.subject)
	assert.Contains(t, all.body, "inv-nyhed")
	assert.Contains(t, all.body, "bolig-nyhed")

	only, ok := byRecipient["inv@tidende.dk"]
	require.True(t, ok)
	assert.Contains(t, only.subject, "(1 artikler)")
	assert.Contains(t, only.body, "inv-nyhed")
	assert.NotContains(t, only.body, "bolig-nyhed")
}

func TestWeeklyDigestRecordsDigestKind(t *testing.T) {
	db := newTestDB(t)
	inv := createCategory(t, db, "Investering")
	createPublished(t, db, "inv-nyhed", time.Now().UTC().Add(-time.Hour), inv)
	createSubscriber(t, db, "alle@tidende.dk", models.FrequencyWeekly, true)

	summary, err := newFanout(db, &fakeSender{}).WeeklyDigest(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Sent)

	var log models.EmailLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, models.EmailKindDigest, log.Kind)
}
