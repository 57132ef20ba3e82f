package relevance

import (
	"fmt"
	"strings"
)

// Interests describes what the reader cares about. A non-empty Prompt takes
// precedence over Keywords.
type Interests struct {
	Prompt   string
	Keywords []string
}

func (in Interests) Empty() bool {
	if strings.TrimSpace(in.Prompt) != "" {
		return false
	}
	for _, k := range in.Keywords {
		if strings.TrimSpace(k) != "" {
			return false
		}
	}
	return true
}

func (l *Locale) describe(in Interests) string {
	if p := strings.TrimSpace(in.Prompt); p != "" {
		return l.screening.promptHeader + "\n" + p
	}
	return l.screening.keywordsHeader + "\n" + strings.Join(in.Keywords, ", ")
}

// ScreeningPrompt asks for one verdict per item of b. Abstracts longer than
// abstractLimit runes are cut.
func (l *Locale) ScreeningPrompt(b Batch, in Interests, abstractLimit int) string {
	t := l.screening
	var items strings.Builder
	for _, e := range b.Entries {
		items.WriteString("\n" + l.Marker(e.Index) + "\n")
		items.WriteString(t.title + oneLine(e.Item.Title) + "\n")
		abstract, cut := truncateRunes(strings.TrimSpace(e.Item.Abstract), abstractLimit)
		if cut {
			abstract += t.ellipsis
		}
		items.WriteString(t.abstract + abstract + "\n")
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s\n\n%s", t.intro, l.describe(in), items.String(), t.format, t.criteria)
}

// DetailPrompt asks for enrichment of every item of b, with full abstracts and
// at most authorLimit authors per item.
func (l *Locale) DetailPrompt(b Batch, language string, authorLimit int) string {
	t := l.detail
	var items strings.Builder
	for _, e := range b.Entries {
		items.WriteString("\n" + t.separator + "\n")
		items.WriteString(l.Marker(e.Index) + "\n")
		items.WriteString(t.title + oneLine(e.Item.Title) + "\n")
		items.WriteString(t.authors + l.authorLine(e.Item.Authors, authorLimit) + "\n")
		items.WriteString(t.abstract + strings.TrimSpace(e.Item.Abstract) + "\n")
	}
	return fmt.Sprintf("%s\n%s\n\n"+t.format, t.intro, items.String(), language)
}

func (l *Locale) authorLine(authors []string, limit int) string {
	if limit <= 0 || len(authors) <= limit {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:limit], ", ") + l.detail.etAl(len(authors))
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
