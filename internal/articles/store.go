package articles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrogh/tidende/internal/models"
	"gorm.io/gorm"
)

// ErrSlugTaken is returned when an insert collides with an existing slug.
// Slugs are never disambiguated automatically: the item is dropped and
// reported, and the next discovery run regenerates the story.
var ErrSlugTaken = errors.New("article slug already taken")

// Store owns article persistence: deduplication, publication with category
// links, and the image update.
type Store struct {
	db *gorm.DB
}

// NewStore creates an article store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindDuplicate returns an existing article matching by exact source URL or
// case-insensitive title, or nil when the item is new. Runs before any paid
// AI call.
func (s *Store) FindDuplicate(ctx context.Context, title, sourceURL string) (*models.Article, error) {
	var article models.Article
	q := s.db.WithContext(ctx)
	if sourceURL != "" {
		q = q.Where("source_url = ? OR LOWER(title) = LOWER(?)", sourceURL, title)
	} else {
		q = q.Where("LOWER(title) = LOWER(?)", title)
	}
	err := q.First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup failed: %w", err)
	}
	return &article, nil
}

// Publish inserts the article and links it to the categories whose names
// match exactly. Unmatched names are dropped; no categories are created
// here. A slug collision surfaces as ErrSlugTaken.
func (s *Store) Publish(ctx context.Context, article *models.Article, categoryNames []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories").Create(article).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSlugTaken
			}
			return fmt.Errorf("failed to insert article: %w", err)
		}

		if len(categoryNames) == 0 {
			return nil
		}

		var categories []models.Category
		if err := tx.Where("name IN ?", categoryNames).Find(&categories).Error; err != nil {
			return fmt.Errorf("category lookup failed: %w", err)
		}
		if len(categories) == 0 {
			return nil
		}

		if err := tx.Model(article).Association("Categories").Append(&categories); err != nil {
			return fmt.Errorf("failed to link categories: %w", err)
		}
		return nil
	})
}

// SetImage records the hero image URL for an already published article.
// Called once by the best-effort image stage.
func (s *Store) SetImage(ctx context.Context, articleID uint, url string) error {
	result := s.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", articleID).Update("image", url)
	if result.Error != nil {
		return fmt.Errorf("failed to update article image: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("article %d not found", articleID)
	}
	return nil
}

// GetWithCategories loads one article with its category links.
func (s *Store) GetWithCategories(ctx context.Context, articleID uint) (*models.Article, error) {
	var article models.Article
	err := s.db.WithContext(ctx).Preload("Categories").First(&article, articleID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load article %d: %w", articleID, err)
	}
	return &article, nil
}

// PublishedSince returns published articles with a published date inside
// (since, now], categories preloaded, newest first.
func (s *Store) PublishedSince(ctx context.Context, since time.Time) ([]models.Article, error) {
	var articles []models.Article
	err := s.db.WithContext(ctx).
		Preload("Categories").
		Where("status = ? AND published_date > ?", models.ArticleStatusPublished, since).
		Order("published_date DESC").
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load published articles: %w", err)
	}
	return articles, nil
}
