package relevance

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

// Verdict is one screening answer recovered from a response.
type Verdict struct {
	Index  int
	Level  content.Level
	Topics []string
}

// Detail is one enrichment answer recovered from a response. A nil
// Affiliations means the abstract did not name any.
type Detail struct {
	Index        int
	Affiliations *string
	Translation  string
	Summary      string
}

type section struct {
	index int
	lines []string
}

// sections splits a response at item markers. Text on a marker line after the
// marker belongs to that item; lines before the first marker are dropped.
func (l *Locale) sections(response string) []section {
	var out []section
	cur := -1
	for _, line := range strings.Split(strings.ReplaceAll(response, "\r\n", "\n"), "\n") {
		locs := l.marker.FindAllStringSubmatchIndex(line, -1)
		if len(locs) == 0 {
			if cur >= 0 {
				out[cur].lines = append(out[cur].lines, line)
			}
			continue
		}
		for i, loc := range locs {
			end := len(line)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			n, err := strconv.Atoi(line[loc[2]:loc[3]])
			if err != nil {
				cur = -1
				continue
			}
			out = append(out, section{index: n, lines: []string{line[loc[1]:end]}})
			cur = len(out) - 1
		}
	}
	return out
}

// ParseScreening extracts one verdict per item section. A section without a
// recognizable level yields LevelUnknown.
func (l *Locale) ParseScreening(response string) []Verdict {
	secs := l.sections(response)
	out := make([]Verdict, 0, len(secs))
	for _, s := range secs {
		out = append(out, l.verdict(s))
	}
	return out
}

func (l *Locale) verdict(s section) Verdict {
	v := Verdict{Index: s.index, Level: content.LevelUnknown, Topics: []string{}}
	var haveLevel, haveTopics bool
	for _, line := range s.lines {
		if !haveLevel {
			if loc := l.relevance.FindStringIndex(line); loc != nil {
				value := line[loc[1]:]
				if t := l.topics.FindStringIndex(value); t != nil {
					value = value[:t[0]]
				}
				if lvl, ok := l.Level(cutField(value)); ok {
					v.Level, haveLevel = lvl, true
				}
			}
		}
		if !haveTopics {
			if loc := l.topics.FindStringIndex(line); loc != nil {
				v.Topics, haveTopics = l.splitTopics(cutField(line[loc[1]:])), true
			}
		}
	}
	return v
}

// Level classifies a field value. A level word at the start of the value
// decides; otherwise the priority is high, medium, low, none regardless of
// position.
func (l *Locale) Level(value string) (content.Level, bool) {
	value = strings.TrimLeft(strings.TrimSpace(value), "*\"'“[(（【")
	for _, w := range l.levelWords {
		if w.lead.MatchString(value) {
			return w.level, true
		}
	}
	for _, w := range l.levelWords {
		if w.re.MatchString(value) {
			return w.level, true
		}
	}
	return content.LevelUnknown, false
}

func (l *Locale) splitTopics(value string) []string {
	out := []string{}
	if l.meansNone(value) {
		return out
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return strings.ContainsRune(",，、;；", r)
	})
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "*.。 ")
		if p != "" && !l.meansNone(p) {
			out = append(out, p)
		}
	}
	return out
}

func (l *Locale) meansNone(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexAny(v, "(（"); i > 0 {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.Trim(v, "\"'“”.。")
	if v == "" {
		return true
	}
	for _, n := range l.noneValues {
		if v == n {
			return true
		}
	}
	return false
}

// cutField trims the separator after a label and stops at the next "|".
func cutField(s string) string {
	s = strings.TrimLeft(s, " \t*:：")
	if i := strings.IndexAny(s, "|｜"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*"))
}

// ParseDetail extracts enrichment records. Fields may span several lines. A
// section in which no field label is found is malformed and skipped.
func (l *Locale) ParseDetail(response string) []Detail {
	secs := l.sections(response)
	out := make([]Detail, 0, len(secs))
	for _, s := range secs {
		if d, ok := l.detailRecord(s); ok {
			out = append(out, d)
		}
	}
	return out
}

const (
	fieldAffiliation = iota
	fieldTranslation
	fieldSummary
	fieldCount
)

func (l *Locale) detailRecord(s section) (Detail, bool) {
	var (
		text  [fieldCount][]string
		found bool
	)
	cur := -1
	for _, raw := range s.lines {
		line := cleanLine(raw)
		if line == "" || isRule(line) {
			continue
		}
		// Inside an open field only a numbered or bulleted line, or one whose
		// key is nothing but a label, starts the next field.
		strict := cur >= 0 && !listed(raw)
		if f, rest, ok := l.fieldLabel(line, strict); ok {
			cur, found = f, true
			if rest != "" {
				text[f] = append(text[f], rest)
			}
			continue
		}
		if cur >= 0 {
			text[cur] = append(text[cur], line)
		}
	}
	if !found {
		return Detail{}, false
	}
	d := Detail{
		Index:       s.index,
		Translation: strings.Join(text[fieldTranslation], "\n"),
		Summary:     strings.Join(text[fieldSummary], "\n"),
	}
	if aff := strings.Join(text[fieldAffiliation], "\n"); aff != "" && !l.notStatedValue(aff) {
		d.Affiliations = &aff
	}
	return d, true
}

// fieldLabel looks for a label in the part of the line before the first
// colon. A line without a colon counts only when it is short enough to be a
// heading. In strict mode the key may hold nothing besides the label and a
// parenthesized note.
func (l *Locale) fieldLabel(line string, strict bool) (int, string, bool) {
	key, rest := line, ""
	if i := strings.IndexAny(line, ":："); i >= 0 {
		key = line[:i]
		_, size := utf8.DecodeRuneInString(line[i:])
		rest = strings.TrimSpace(line[i+size:])
	} else if utf8.RuneCountInString(line) > 24 {
		return 0, "", false
	}
	for _, f := range []struct {
		field int
		re    *regexp.Regexp
	}{
		{fieldAffiliation, l.affiliation},
		{fieldTranslation, l.translation},
		{fieldSummary, l.summary},
	} {
		loc := f.re.FindStringIndex(key)
		if loc == nil {
			continue
		}
		if strict && !bareLabel(key[:loc[0]], key[loc[1]:]) {
			return 0, "", false
		}
		return f.field, rest, true
	}
	return 0, "", false
}

func bareLabel(before, after string) bool {
	if strings.TrimSpace(before) != "" {
		return false
	}
	after = strings.TrimSpace(after)
	return after == "" || strings.HasPrefix(after, "(") || strings.HasPrefix(after, "（")
}

func (l *Locale) notStatedValue(v string) bool {
	lower := strings.ToLower(v)
	for _, s := range l.notStated {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

var listPrefix = regexp.MustCompile(`^(?:[#>\s]+|[-*•]\s+|\d+\s*[.、)）]\s*)*`)

var listMarker = regexp.MustCompile(`^(?:[-*•]\s+|\d+\s*[.、)）])`)

func listed(raw string) bool {
	return listMarker.MatchString(strings.TrimLeft(strings.TrimSpace(raw), "#> "))
}

func cleanLine(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "**", "")
	return strings.TrimSpace(listPrefix.ReplaceAllString(s, ""))
}

func isRule(s string) bool {
	if len(s) < 3 {
		return false
	}
	return strings.Trim(s, "=-_*") == ""
}
