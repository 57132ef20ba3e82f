package relevance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

const (
	LocaleZH = "zh"
	LocaleEN = "en"
)

// Locale carries the language-dependent half of prompting and parsing: the
// item marker, field labels and level keywords the backend is asked to echo.
type Locale struct {
	Name string

	marker      *regexp.Regexp
	markerText  func(index int) string
	relevance   *regexp.Regexp
	topics      *regexp.Regexp
	affiliation *regexp.Regexp
	translation *regexp.Regexp
	summary     *regexp.Regexp

	// A leading level word decides. Otherwise the words are searched in this
	// order and the first match wins.
	levelWords []levelWord
	noneValues []string
	notStated  []string

	screening screeningText
	detail    detailText
}

type levelWord struct {
	level content.Level
	lead  *regexp.Regexp
	re    *regexp.Regexp
}

type screeningText struct {
	intro, promptHeader, keywordsHeader string
	title, abstract, ellipsis           string
	format, criteria                    string
}

type detailText struct {
	intro, separator                 string
	title, authors, abstract, format string
	etAl                             func(total int) string
}

// LookupLocale returns the locale registered under name; empty selects zh.
func LookupLocale(name string) (*Locale, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LocaleZH:
		return zhLocale, nil
	case LocaleEN:
		return enLocale, nil
	}
	return nil, fmt.Errorf("%w: unknown locale %q", ErrInvalidConfig, name)
}

func (l *Locale) Marker(index int) string { return l.markerText(index) }

func labelPattern(labels ...string) *regexp.Regexp {
	quoted := make([]string, len(labels))
	for i, s := range labels {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

var zhLocale = &Locale{
	Name:        LocaleZH,
	marker:      regexp.MustCompile(`【\s*论文\s*(\d+)\s*】`),
	markerText:  func(i int) string { return fmt.Sprintf("【论文%d】", i) },
	relevance:   labelPattern("相关性", "相关度"),
	topics:      labelPattern("匹配领域", "相关领域"),
	affiliation: labelPattern("作者单位", "单位"),
	translation: labelPattern("摘要中文翻译", "中文翻译", "翻译"),
	summary:     labelPattern("核心内容", "核心创新", "一句话总结"),
	levelWords: []levelWord{
		{content.LevelHigh, regexp.MustCompile(`^高`), regexp.MustCompile(`高`)},
		{content.LevelMedium, regexp.MustCompile(`^中`), regexp.MustCompile(`中`)},
		{content.LevelLow, regexp.MustCompile(`^低`), regexp.MustCompile(`低`)},
		{content.LevelNone, regexp.MustCompile(`^(?:无关|不相关|无)`), regexp.MustCompile(`无关|不相关|无`)},
	},
	noneValues: []string{"无", "none", "n/a", "-"},
	notStated:  []string{"未在摘要中说明", "未说明", "未提及"},
	screening: screeningText{
		intro:          "你是一个AI研究助手。请判断以下论文是否与用户的研究方向相关。",
		promptHeader:   "用户的研究兴趣描述：",
		keywordsHeader: "用户的研究方向：",
		title:          "标题: ",
		abstract:       "摘要: ",
		ellipsis:       "...",
		format: `请对每篇论文按以下格式回答（务必包含论文编号）：

【论文X】相关性: 高/中/低/无关  |  匹配领域: XXX, XXX（如果无关则写"无"）`,
		criteria: `相关性判断标准：
- 高相关：论文核心内容直接服务于用户的研究方向，方法和应用场景高度契合
- 中相关：论文涉及用户关注的技术或方法，虽然应用场景不完全相同，但有借鉴价值或潜在迁移可能
- 低相关：论文提到了相关的概念或技术，但不是核心内容，仅有间接联系
- 无关：论文内容与用户研究方向完全无关

重要提示：
- 必须包含【论文X】标记，X 为上面给出的编号
- 采用宽松的标准：只要论文涉及相关技术、方法或应用场景，应标记为"中相关"或"高相关"`,
	},
	detail: detailText{
		intro:     "请对以下论文进行详细分析。",
		separator: strings.Repeat("=", 60),
		title:     "标题：",
		authors:   "作者：",
		abstract:  "摘要（原文）：",
		format: `请对每篇论文按以下格式回答（务必包含论文编号）：

【论文X】
1. 作者单位：XXX（如果摘要中提到了作者单位，请列出；如果没有提到，写"未在摘要中说明"）
2. 摘要中文翻译：XXX（将上述摘要完整翻译成%s，保持学术性和准确性）
3. 核心内容：XXX（1-2句话概括论文的核心创新点和贡献）

注意：
- 必须包含【论文X】标记
- 作者单位只从摘要中提取，不要推测
- 核心内容要突出创新点`,
		etAl: func(n int) string { return fmt.Sprintf(" 等 (%d位作者)", n) },
	},
}

var enLocale = &Locale{
	Name:        LocaleEN,
	marker:      regexp.MustCompile(`(?i)\[\s*item\s*#?\s*(\d+)\s*\]`),
	markerText:  func(i int) string { return fmt.Sprintf("[ITEM %d]", i) },
	relevance:   labelPattern("relevance", "relevancy"),
	topics:      labelPattern("matched topics", "matched interests", "matched areas", "topics"),
	affiliation: labelPattern("affiliations", "affiliation", "institutions", "institution"),
	translation: labelPattern("translated abstract", "translation"),
	summary:     labelPattern("summary", "core contribution", "key contribution"),
	levelWords: []levelWord{
		{content.LevelHigh, regexp.MustCompile(`(?i)^high\b`), regexp.MustCompile(`(?i)\bhigh\b`)},
		{content.LevelMedium, regexp.MustCompile(`(?i)^(?:medium|moderate)\b`), regexp.MustCompile(`(?i)\b(?:medium|moderate)\b`)},
		{content.LevelLow, regexp.MustCompile(`(?i)^low\b`), regexp.MustCompile(`(?i)\blow\b`)},
		{content.LevelNone, regexp.MustCompile(`(?i)^(?:none|irrelevant|not relevant)\b`), regexp.MustCompile(`(?i)\b(?:none|irrelevant|not relevant)\b`)},
	},
	noneValues: []string{"none", "n/a", "na", "-", "无"},
	notStated:  []string{"not stated", "not mentioned", "not specified"},
	screening: screeningText{
		intro:          "You are an AI research assistant. Decide whether each paper below is relevant to the user's research.",
		promptHeader:   "The user's research interests:",
		keywordsHeader: "The user's research topics:",
		title:          "Title: ",
		abstract:       "Abstract: ",
		ellipsis:       "...",
		format: `Answer for every paper on one line, using exactly this format and keeping the item number:

[ITEM X] Relevance: high/medium/low/none | Matched topics: topic, topic (write "none" when not relevant)`,
		criteria: `Relevance criteria:
- high: the paper's core contribution directly serves the user's research
- medium: the paper uses techniques or methods the user cares about and could transfer
- low: related concepts appear but only indirectly
- none: unrelated to the user's research

Always include the [ITEM X] marker with the number given above. Prefer a lenient reading.`,
	},
	detail: detailText{
		intro:     "Analyze each of the following papers in detail.",
		separator: strings.Repeat("=", 60),
		title:     "Title: ",
		authors:   "Authors: ",
		abstract:  "Abstract: ",
		format: `Answer for every paper using this format and keeping the item number:

[ITEM X]
1. Affiliations: the author institutions if the abstract names them, otherwise "not stated"
2. Translation: the complete abstract translated into %s
3. Summary: one or two sentences on the core contribution

Notes:
- Always include the [ITEM X] marker
- Take affiliations only from the abstract, never guess`,
		etAl: func(n int) string { return fmt.Sprintf(" et al. (%d authors)", n) },
	},
}
