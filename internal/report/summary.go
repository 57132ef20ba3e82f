package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

// SummaryText is the short plain-text digest used as a message body.
func SummaryText(env Envelope) string {
	l := labelsFor(env.Locale)
	var b strings.Builder
	if !env.Analyzed {
		fmt.Fprintf(&b, "%s\n\n- %s: %d%s\n\n%s", l.summaryPlain, l.total, len(env.Items), l.summaryCount, l.summaryFooter)
		return b.String()
	}
	reported := env.Reported()
	counts := map[content.Level]int{}
	for _, it := range reported {
		counts[it.Analysis.RelevanceLevel]++
	}
	fmt.Fprintf(&b, "%s\n\n", l.summaryAnalyzed)
	fmt.Fprintf(&b, "- %s: %d%s\n", l.total, len(env.Items), l.summaryCount)
	fmt.Fprintf(&b, "- %s: %d%s\n", l.relevant, len(reported), l.summaryCount)
	for _, lvl := range []content.Level{content.LevelHigh, content.LevelMedium, content.LevelLow} {
		if counts[lvl] > 0 {
			fmt.Fprintf(&b, "  - %s: %d%s\n", lvl, counts[lvl], l.summaryCount)
		}
	}
	if len(env.Interests) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", l.interests)
		for _, in := range env.Interests {
			fmt.Fprintf(&b, "  - %s\n", in)
		}
	}
	b.WriteString("\n" + l.summaryFooter)
	return b.String()
}

// WriteTable prints the reported items as a terminal table.
func WriteTable(w io.Writer, env Envelope) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Level", "Title", "Matched", "Link"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 60},
		{Number: 4, WidthMax: 30},
	})
	for i, it := range env.Reported() {
		lvl := it.Analysis.RelevanceLevel
		if lvl == "" {
			lvl = content.LevelUnknown
		}
		t.AppendRow(table.Row{i + 1, levelColor(lvl).Sprint(string(lvl)), oneLine(it.Title), strings.Join(it.Analysis.MatchedInterests, ", "), it.URL})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d of %d items", len(env.Reported()), len(env.Items))})
	t.Render()
}

func levelColor(l content.Level) text.Colors {
	switch l {
	case content.LevelHigh:
		return text.Colors{text.FgGreen, text.Bold}
	case content.LevelMedium:
		return text.Colors{text.FgYellow}
	case content.LevelLow:
		return text.Colors{text.FgCyan}
	}
	return text.Colors{text.Faint}
}
