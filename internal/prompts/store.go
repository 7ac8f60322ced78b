package prompts

import (
	"errors"
	"regexp"
	"strings"

	"github.com/mkrogh/tidende/internal/models"
	"gorm.io/gorm"
)

// Prompt keys used by the generation stages.
const (
	KeyNewsFetch       = "news_fetch"
	KeyArticleResearch = "article_research"
	KeyArticleWriting  = "article_writing"
	KeyArticleMetadata = "article_metadata"
	KeyImageGeneration = "image_generation"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Store resolves prompt templates. The prompt table is editable from the CMS;
// the newest version for a key wins. When no row exists the hardcoded default
// for that key is used so the pipeline stays operable with an empty table.
type Store struct {
	db *gorm.DB
}

// NewStore creates a prompt store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Render returns the prompt body for key with {{name}} placeholders replaced
// from vars. Placeholders without a matching var resolve to empty.
func (s *Store) Render(key string, vars map[string]string) string {
	body := s.body(key)
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

func (s *Store) body(key string) string {
	if s.db != nil {
		var p models.Prompt
		err := s.db.Where("key = ?", key).Order("version DESC").First(&p).Error
		if err == nil && p.Body != "" {
			return p.Body
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			// Lookup failures degrade to the default body rather than
			// blocking a generation stage.
			return defaultBodies[key]
		}
	}
	return defaultBodies[key]
}

// Vars builds a substitution map from alternating key/value pairs.
func Vars(pairs ...string) map[string]string {
	vars := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		vars[pairs[i]] = pairs[i+1]
	}
	return vars
}

// JoinSources renders candidate citation URLs for prompt interpolation.
func JoinSources(sources []string) string {
	return strings.Join(sources, "\n")
}
