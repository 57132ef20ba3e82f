package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

const userAgent = "arxiv-agent/1.0"

// ArxivSource queries the arXiv API for recent submissions per category.
type ArxivSource struct {
	client     *http.Client
	baseURL    string
	categories []string
	maxResults int
	daysBack   int
	now        func() time.Time
	logger     *zap.Logger
}

type ArxivConfig struct {
	BaseURL    string
	Categories []string
	MaxResults int
	DaysBack   int
}

// NewArxivSource wires an HTTP client; nil gets one with a 30s timeout.
func NewArxivSource(client *http.Client, cfg ArxivConfig, logger *zap.Logger) *ArxivSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArxivSource{
		client:     client,
		baseURL:    cfg.BaseURL,
		categories: cfg.Categories,
		maxResults: cfg.MaxResults,
		daysBack:   cfg.DaysBack,
		now:        time.Now,
		logger:     logger,
	}
}

func (a *ArxivSource) Name() string { return "arxiv" }

// Fetch returns the entries of every category whose newest date falls within
// the last daysBack days. Results are sorted newest first by the API, so a
// category stops at its first older entry.
func (a *ArxivSource) Fetch(ctx context.Context) ([]content.Item, error) {
	if len(a.categories) == 0 {
		return nil, fmt.Errorf("no arxiv categories configured")
	}
	cutoff := a.now().UTC().AddDate(0, 0, -a.daysBack)

	var out []content.Item
	for _, cat := range a.categories {
		pageURL, err := a.queryURL(cat)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		items := extractEntries(doc, cat, cutoff)
		a.logger.Info("arxiv_category_fetched", zap.String("category", cat), zap.Int("items", len(items)))
		out = append(out, items...)
	}
	return out, nil
}

func (a *ArxivSource) queryURL(category string) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("search_query", "cat:"+category)
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("start", "0")
	// Twice the limit so that a busy day is not cut short.
	q.Set("max_results", strconv.Itoa(a.maxResults*2))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *ArxivSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return doc, nil
}

func extractEntries(doc *goquery.Document, category string, cutoff time.Time) []content.Item {
	var items []content.Item
	doc.Find("entry").EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		it, ok := parseEntry(entry, category)
		if !ok {
			return true
		}
		effective := it.Published
		if it.Updated.After(effective) {
			effective = it.Updated
		}
		if effective.Before(cutoff) {
			return false
		}
		items = append(items, it)
		return true
	})
	return items
}

func parseEntry(entry *goquery.Selection, category string) (content.Item, bool) {
	id := strings.TrimSpace(entry.ChildrenFiltered("id").First().Text())
	title := collapse(entry.Find("title").First().Text())
	if id == "" || title == "" {
		return content.Item{}, false
	}

	var authors []string
	entry.Find("author name").Each(func(_ int, s *goquery.Selection) {
		if name := collapse(s.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	var pdfURL string
	entry.Find("link").Each(func(_ int, s *goquery.Selection) {
		if t, _ := s.Attr("title"); t == "pdf" {
			pdfURL, _ = s.Attr("href")
		}
	})

	var categories []string
	entry.Find("category").Each(func(_ int, s *goquery.Selection) {
		if term, ok := s.Attr("term"); ok && term != "" {
			categories = append(categories, term)
		}
	})
	primary := category
	if len(categories) > 0 {
		primary = categories[0]
	}

	published := parseTime(entry.Find("published").First().Text())
	updated := parseTime(entry.Find("updated").First().Text())
	if updated.IsZero() {
		updated = published
	}

	return content.Item{
		Title:     title,
		Abstract:  collapse(entry.Find("summary").First().Text()),
		Authors:   authors,
		URL:       id,
		PDFURL:    pdfURL,
		Source:    "arxiv",
		Category:  primary,
		Published: published,
		Updated:   updated,
		Extra:     map[string]any{"categories": categories, "query_category": category},
	}, true
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
