package content

import (
	"fmt"
	"strings"
	"time"
)

// Level is the coarse relevance verdict assigned by screening.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelNone    Level = "none"
	LevelUnknown Level = "unknown"
)

// Levels lists every verdict from most to least relevant.
var Levels = []Level{LevelHigh, LevelMedium, LevelLow, LevelNone, LevelUnknown}

// Rank orders levels for thresholding: high=3, medium=2, low=1, none and unknown=0.
func (l Level) Rank() int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	default:
		return 0
	}
}

// Relevant reports whether the level marks an item as relevant.
func (l Level) Relevant() bool {
	return l == LevelHigh || l == LevelMedium
}

func (l Level) Valid() bool {
	switch l {
	case LevelHigh, LevelMedium, LevelLow, LevelNone, LevelUnknown:
		return true
	}
	return false
}

// ParseThreshold accepts the user-facing minimum relevance values.
func ParseThreshold(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelHigh:
		return LevelHigh, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelLow:
		return LevelLow, nil
	}
	return "", fmt.Errorf("min relevance must be high, medium or low, got %q", s)
}

// Item is one paper, article or post entering the pipeline. Source specific
// fields the pipeline does not understand travel in Extra untouched.
type Item struct {
	Title     string         `json:"title"`
	Abstract  string         `json:"abstract"`
	Authors   []string       `json:"authors,omitempty"`
	URL       string         `json:"url,omitempty"`
	PDFURL    string         `json:"pdf_url,omitempty"`
	Source    string         `json:"source,omitempty"`
	Category  string         `json:"category,omitempty"`
	Published time.Time      `json:"published,omitempty"`
	Updated   time.Time      `json:"updated,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`

	Analysis Analysis `json:"analysis"`
}

// Analysis holds the annotations written by the relevance pipeline.
type Analysis struct {
	RelevanceLevel     Level    `json:"relevance_level"`
	MatchedInterests   []string `json:"matched_interests"`
	IsRelevant         bool     `json:"is_relevant"`
	Affiliations       *string  `json:"affiliations,omitempty"`
	TranslatedAbstract string   `json:"translated_abstract,omitempty"`
	OneLineSummary     string   `json:"one_line_summary,omitempty"`
}

// Enriched reports whether a detail record was merged into the item.
func (a Analysis) Enriched() bool {
	return a.Affiliations != nil || a.TranslatedAbstract != "" || a.OneLineSummary != ""
}

// Unanalyzed returns an analysis carrying the unknown verdict.
func Unanalyzed() Analysis {
	return Analysis{RelevanceLevel: LevelUnknown, MatchedInterests: []string{}}
}

// DedupeByURL keeps the first item per URL. Items without a URL are kept.
func DedupeByURL(items []Item) []Item {
	seen := map[string]struct{}{}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		key := strings.TrimSpace(it.URL)
		if key != "" {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}
