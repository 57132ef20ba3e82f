package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

type labels struct {
	title, interests, prompt, stats, total, relevant, distribution, failed string

	sections map[content.Level]string

	published, updated, authors, etAl, affiliations, category string
	link, pdf, matched, translation, summary                  string

	summaryAnalyzed, summaryPlain, summaryCount, summaryFooter string
}

var zhLabels = labels{
	title:        "ArXiv 论文日报",
	interests:    "研究方向",
	prompt:       "研究兴趣描述",
	stats:        "统计信息",
	total:        "总论文数",
	relevant:     "相关论文数",
	distribution: "相关性分布",
	failed:       "失败批次",
	sections: map[content.Level]string{
		content.LevelHigh:    "强烈推荐 (高相关性)",
		content.LevelMedium:  "推荐阅读 (中等相关性)",
		content.LevelLow:     "可能感兴趣 (低相关性)",
		content.LevelUnknown: "所有论文 (未分析)",
	},
	published:       "发布日期",
	updated:         "更新",
	authors:         "作者",
	etAl:            " 等 (%d位作者)",
	affiliations:    "单位",
	category:        "类别",
	link:            "论文链接",
	pdf:             "PDF链接",
	matched:         "相关领域",
	translation:     "摘要（翻译）",
	summary:         "核心内容",
	summaryAnalyzed: "今日论文分析报告已生成！",
	summaryPlain:    "今日论文搜索完成！",
	summaryCount:    "篇",
	summaryFooter:   "详细内容请查看报告。",
}

var enLabels = labels{
	title:        "ArXiv Daily Digest",
	interests:    "Research Interests",
	prompt:       "Research Description",
	stats:        "Statistics",
	total:        "Total items",
	relevant:     "Relevant items",
	distribution: "Relevance distribution",
	failed:       "Failed batches",
	sections: map[content.Level]string{
		content.LevelHigh:    "Highly Recommended (high relevance)",
		content.LevelMedium:  "Recommended (medium relevance)",
		content.LevelLow:     "Possibly Interesting (low relevance)",
		content.LevelUnknown: "All Items (not analyzed)",
	},
	published:       "Published",
	updated:         "updated",
	authors:         "Authors",
	etAl:            " et al. (%d authors)",
	affiliations:    "Affiliations",
	category:        "Category",
	link:            "Link",
	pdf:             "PDF",
	matched:         "Matched interests",
	translation:     "Translated abstract",
	summary:         "Summary",
	summaryAnalyzed: "Today's analysis report is ready.",
	summaryPlain:    "Today's search is complete.",
	summaryCount:    "",
	summaryFooter:   "See the attached report for details.",
}

func labelsFor(locale string) labels {
	if strings.EqualFold(locale, "en") {
		return enLabels
	}
	return zhLabels
}

const dateLayout = "2006-01-02"

// Markdown renders the daily report for env.
func Markdown(env Envelope) string {
	l := labelsFor(env.Locale)
	var b strings.Builder

	fmt.Fprintf(&b, "# %s - %s\n\n", l.title, env.GeneratedAt.Format(dateLayout))

	if len(env.Interests) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", l.interests)
		for _, in := range env.Interests {
			fmt.Fprintf(&b, "- %s\n", in)
		}
		b.WriteString("\n")
	}
	if env.Prompt != "" {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", l.prompt, env.Prompt)
	}

	reported := env.Reported()
	fmt.Fprintf(&b, "## %s\n\n", l.stats)
	fmt.Fprintf(&b, "- %s: %d\n", l.total, len(env.Items))
	if env.Analyzed {
		fmt.Fprintf(&b, "- %s: %d\n", l.relevant, len(reported))
		counts := map[content.Level]int{}
		for _, it := range env.Items {
			counts[it.Analysis.RelevanceLevel]++
		}
		fmt.Fprintf(&b, "- %s:\n", l.distribution)
		for _, lvl := range content.Levels {
			if counts[lvl] > 0 {
				fmt.Fprintf(&b, "  - %s: %d\n", lvl, counts[lvl])
			}
		}
		if len(env.Failures) > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", l.failed, len(env.Failures))
		}
	}
	b.WriteString("\n")

	groups := map[content.Level][]content.Item{}
	for _, it := range reported {
		lvl := it.Analysis.RelevanceLevel
		if !env.Analyzed || lvl == "" {
			lvl = content.LevelUnknown
		}
		groups[lvl] = append(groups[lvl], it)
	}
	for _, lvl := range []content.Level{content.LevelHigh, content.LevelMedium, content.LevelLow, content.LevelUnknown} {
		if len(groups[lvl]) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", l.sections[lvl])
		for _, it := range groups[lvl] {
			writeItem(&b, l, it)
		}
	}
	return b.String()
}

func writeItem(b *strings.Builder, l labels, it content.Item) {
	fmt.Fprintf(b, "### %s\n\n", oneLine(it.Title))

	if !it.Published.IsZero() {
		pub := it.Published.Format(dateLayout)
		if !it.Updated.IsZero() && it.Updated.Format(dateLayout) != pub {
			fmt.Fprintf(b, "**%s:** %s (%s: %s)  \n", l.published, pub, l.updated, it.Updated.Format(dateLayout))
		} else {
			fmt.Fprintf(b, "**%s:** %s  \n", l.published, pub)
		}
	}
	if len(it.Authors) > 0 {
		fmt.Fprintf(b, "**%s:** %s  \n", l.authors, authorLine(it.Authors, 3, l.etAl))
	}
	if a := it.Analysis.Affiliations; a != nil && *a != "" {
		fmt.Fprintf(b, "**%s:** %s  \n", l.affiliations, oneLine(*a))
	}
	if cat := firstNonEmpty(it.Category, it.Source); cat != "" {
		fmt.Fprintf(b, "**%s:** %s  \n", l.category, cat)
	}
	if it.URL != "" {
		fmt.Fprintf(b, "**%s:** %s  \n", l.link, it.URL)
	}
	if it.PDFURL != "" {
		fmt.Fprintf(b, "**%s:** %s  \n", l.pdf, it.PDFURL)
	}
	if len(it.Analysis.MatchedInterests) > 0 {
		fmt.Fprintf(b, "**%s:** %s  \n", l.matched, strings.Join(it.Analysis.MatchedInterests, ", "))
	}
	if it.Analysis.TranslatedAbstract != "" {
		fmt.Fprintf(b, "\n**%s:**\n\n%s\n", l.translation, it.Analysis.TranslatedAbstract)
	}
	if it.Analysis.OneLineSummary != "" {
		fmt.Fprintf(b, "\n**%s:**\n\n%s\n", l.summary, it.Analysis.OneLineSummary)
	}
	b.WriteString("\n---\n\n")
}

func authorLine(authors []string, limit int, etAl string) string {
	if len(authors) <= limit {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:limit], ", ") + fmt.Sprintf(etAl, len(authors))
}

func newestFirst(items []content.Item) []content.Item {
	out := append([]content.Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return latest(out[i]).After(latest(out[j]))
	})
	return out
}

func latest(it content.Item) time.Time {
	if it.Updated.After(it.Published) {
		return it.Updated
	}
	return it.Published
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
