package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkrogh/tidende/internal/ai"
)

// NewsItem is an AI-discovered story candidate. Ephemeral: consumed once by
// the synthesis pipeline and discarded, success or failure.
type NewsItem struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Sources []string `json:"sources"`
	Date    string   `json:"date"`
}

// maxNewsItems bounds one discovery batch.
const maxNewsItems = 10

// ParseNewsItems extracts `{ "newsItems": [...] }` from a model response,
// tolerating fenced code blocks and surrounding prose. A response with no
// parseable object is a fatal parse error for the batch.
func ParseNewsItems(raw string) ([]NewsItem, error) {
	extracted := ai.ExtractJSON(raw)
	if extracted == "" {
		return nil, fmt.Errorf("no JSON object in discovery response")
	}

	var parsed struct {
		NewsItems []NewsItem `json:"newsItems"`
	}
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse discovery response: %w", err)
	}

	items := parsed.NewsItems
	if len(items) > maxNewsItems {
		items = items[:maxNewsItems]
	}
	return items, nil
}

// SplitCategories turns the metadata stage's comma-separated category string
// into a trimmed, deduplicated, order-preserving list of names.
func SplitCategories(s string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
