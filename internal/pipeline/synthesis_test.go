package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mkrogh/tidende/internal/articles"
	"github.com/mkrogh/tidende/internal/models"
	"github.com/mkrogh/tidende/internal/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
	require.NoError(t, db.AutoMigrate(&models.Article{}, &models.Category{}, &models.Prompt{}))
	return db
}

func seedCategories(t *testing.T, db *gorm.DB, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, db.Create(&models.Category{Name: name, Slug: name}).Error)
	}
}

// scriptedText returns canned responses in call order.
type scriptedText struct {
	responses []string
	errs      map[int]error
	calls     int
}

func (s *scriptedText) Generate(ctx context.Context, input string, webSearch bool) (string, error) {
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return "", err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("unexpected generate call")
}

type recordingEnqueuer struct {
	imageIDs  []uint
	notifyIDs []uint
}

func (r *recordingEnqueuer) EnqueueArticleImage(articleID uint, title string) error {
	r.imageIDs = append(r.imageIDs, articleID)
	return nil
}

func (r *recordingEnqueuer) EnqueueImmediateNotify(articleID uint) error {
	r.notifyIDs = append(r.notifyIDs, articleID)
	return nil
}

func newSynth(db *gorm.DB, text *scriptedText, enq Enqueuer) *Synthesizer {
	return NewSynthesizer(text, prompts.NewStore(db), articles.NewStore(db), enq, discardLogger())
}

func hellerupItem() NewsItem {
	return NewsItem{
		Title:   "Hellerup-ambassade solgt",
		Summary: "Den tidligere ambassadebygning i Hellerup er solgt til en investorgruppe.",
		Sources: []string{"https://x.dk/a"},
		Date:    "i går",
	}
}

func TestProcessPublishesArticleEndToEnd(t *testing.T) {
	db := newTestDB(t)
	seedCategories(t, db, "Investering", "Bolig")

	text := &scriptedText{responses: []string{
		"Research: bygningen blev solgt for 120 mio. kr.",
		"Artiklens brødtekst i markdown.\n\n## Baggrund\n\nMere tekst.",
		`{"slug":"hellerup-ambassade-solgt","metaDescription":"Ambassaden i Hellerup er solgt.","summary":"Solgt til investorgruppe.","categories":"Investering, Bolig"}`,
	}}
	enq := &recordingEnqueuer{}
	synth := newSynth(db, text, enq)

	result := synth.Process(context.Background(), hellerupItem())

	require.Empty(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "hellerup-ambassade-solgt", result.Slug)

	var article models.Article
	require.NoError(t, db.Preload("Categories").Where("slug = ?", "hellerup-ambassade-solgt").First(&article).Error)
	assert.Equal(t, models.ArticleStatusPublished, article.Status)
	assert.NotNil(t, article.PublishedDate)
	require.NotNil(t, article.SourceURL)
	assert.Equal(t, "https://x.dk/a", *article.SourceURL)
	assert.Len(t, article.Categories, 2)

	// Image and notification are handed off as separate tasks.
	assert.Equal(t, []uint{article.ID}, enq.imageIDs)
	assert.Equal(t, []uint{article.ID}, enq.notifyIDs)
}

func TestProcessDuplicateShortCircuitsBeforeAnyAICall(t *testing.T) {
	db := newTestDB(t)
	src := "https://x.dk/a"
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Article{
		Title: "Ældre dækning", Slug: "aeldre", Content: "x",
		SourceURL: &src, Status: models.ArticleStatusPublished, PublishedDate: &now,
	}).Error)

	text := &scriptedText{}
	synth := newSynth(db, text, nil)

	result := synth.Process(context.Background(), hellerupItem())

	assert.True(t, result.Duplicate)
	assert.False(t, result.Success)
	assert.Equal(t, 0, text.calls, "duplicate must be rejected before any paid call")
}

func TestProcessSameItemTwiceYieldsOneArticle(t *testing.T) {
	db := newTestDB(t)
	seedCategories(t, db, "Investering", "Bolig")

	responses := []string{
		"research", "brødtekst",
		`{"slug":"hellerup-ambassade-solgt","metaDescription":"d","summary":"s","categories":"Investering"}`,
	}

	first := newSynth(db, &scriptedText{responses: responses}, nil).Process(context.Background(), hellerupItem())
	require.True(t, first.Success)

	second := newSynth(db, &scriptedText{responses: responses}, nil).Process(context.Background(), hellerupItem())
	assert.True(t, second.Duplicate)

	var count int64
	require.NoError(t, db.Model(&models.Article{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessResearchFailureIsTerminalForItem(t *testing.T) {
	db := newTestDB(t)
	text := &scriptedText{errs: map[int]error{0: errors.New("provider exploded")}}
	synth := newSynth(db, text, nil)

	result := synth.Process(context.Background(), hellerupItem())

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "research stage failed")
	assert.Equal(t, 1, text.calls, "writing must not run after a failed research stage")
}

func TestProcessEmptyResearchOutputFails(t *testing.T) {
	db := newTestDB(t)
	text := &scriptedText{responses: []string{"   \n "}}
	synth := newSynth(db, text, nil)

	result := synth.Process(context.Background(), hellerupItem())
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "research stage returned empty output")
}

func TestProcessMetadataFallbackOnInvalidJSON(t *testing.T) {
	db := newTestDB(t)
	seedCategories(t, db, "Nyheder")

	text := &scriptedText{responses: []string{
		"research",
		"brødtekst",
		"Jeg kunne desværre ikke formatere metadata som JSON.",
	}}
	synth := newSynth(db, text, nil)

	item := hellerupItem()
	result := synth.Process(context.Background(), item)

	require.Empty(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "hellerup-ambassade-solgt", result.Slug)

	var article models.Article
	require.NoError(t, db.Preload("Categories").Where("slug = ?", result.Slug).First(&article).Error)
	assert.Equal(t, item.Summary, article.Summary)
	assert.Equal(t, item.Summary, article.MetaDescription, "short summary is carried whole")
	require.Len(t, article.Categories, 1)
	assert.Equal(t, "Nyheder", article.Categories[0].Name)
}

func TestProcessMetadataFallbackTruncatesMetaDescription(t *testing.T) {
	db := newTestDB(t)

	long := ""
	for i := 0; i < 40; i++ {
		long += "lang tekst "
	}
	item := hellerupItem()
	item.Summary = long

	text := &scriptedText{responses: []string{"research", "brødtekst", "not json"}}
	synth := newSynth(db, text, nil)

	result := synth.Process(context.Background(), item)
	require.True(t, result.Success)

	var article models.Article
	require.NoError(t, db.Where("slug = ?", result.Slug).First(&article).Error)
	assert.Len(t, []rune(article.MetaDescription), 160)
}

func TestProcessSlugCollisionDropsAndReports(t *testing.T) {
	db := newTestDB(t)

	responses := []string{
		"research", "brødtekst",
		`{"slug":"samme-slug","metaDescription":"d","summary":"s","categories":""}`,
	}

	first := newSynth(db, &scriptedText{responses: responses}, nil).Process(context.Background(), NewsItem{
		Title: "Første historie", Summary: "a", Sources: []string{"https://x.dk/1"},
	})
	require.True(t, first.Success)

	second := newSynth(db, &scriptedText{responses: responses}, nil).Process(context.Background(), NewsItem{
		Title: "Anden historie", Summary: "b", Sources: []string{"https://x.dk/2"},
	})
	assert.False(t, second.Success)
	assert.False(t, second.Duplicate)
	assert.Contains(t, second.Err, "samme-slug")

	var count int64
	require.NoError(t, db.Model(&models.Article{}).Where("slug = ?", "samme-slug").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSplitCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "Investering, Bolig", []string{"Investering", "Bolig"}},
		{"dedupes", "Bolig, Bolig, Investering", []string{"Bolig", "Investering"}},
		{"drops empties", " , Investering, ,", []string{"Investering"}},
		{"empty string", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCategories(tt.input))
		})
	}
}
