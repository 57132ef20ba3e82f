package relevance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

func TestScreeningPromptTruncatesAbstract(t *testing.T) {
	long := strings.Repeat("世", 900)
	b := Batch{Entries: []Entry{{Index: 12, Item: content.Item{Title: "Multi\nline  title", Abstract: long}}}}

	prompt := zhLocale.ScreeningPrompt(b, Interests{Keywords: []string{"robotics", "vision"}}, 800)

	assert.Contains(t, prompt, "【论文12】")
	assert.Contains(t, prompt, "标题: Multi line title")
	assert.Contains(t, prompt, "摘要: "+strings.Repeat("世", 800)+"...")
	assert.NotContains(t, prompt, strings.Repeat("世", 801))
	assert.Contains(t, prompt, "robotics, vision")
}

func TestScreeningPromptPrefersFreeText(t *testing.T) {
	b := Batch{Entries: []Entry{{Index: 0, Item: content.Item{Title: "t", Abstract: "short"}}}}
	prompt := enLocale.ScreeningPrompt(b, Interests{Prompt: "embodied agents", Keywords: []string{"kw-only"}}, 800)

	assert.Contains(t, prompt, "embodied agents")
	assert.NotContains(t, prompt, "kw-only")
	assert.Contains(t, prompt, "Abstract: short\n")
	assert.Contains(t, prompt, "[ITEM 0]")
}

func TestDetailPromptTruncatesAuthors(t *testing.T) {
	authors := []string{"A", "B", "C", "D", "E", "F", "G"}
	abstract := strings.Repeat("x", 2000)
	b := Batch{Entries: []Entry{
		{Index: 3, Item: content.Item{Title: "many", Authors: authors, Abstract: abstract}},
		{Index: 9, Item: content.Item{Title: "few", Authors: authors[:2], Abstract: "y"}},
	}}

	prompt := enLocale.DetailPrompt(b, "Chinese", 5)

	assert.Contains(t, prompt, "Authors: A, B, C, D, E et al. (7 authors)")
	assert.Contains(t, prompt, "Authors: A, B\n")
	assert.Contains(t, prompt, abstract)
	assert.Contains(t, prompt, "translated into Chinese")
	assert.Less(t, strings.Index(prompt, "[ITEM 3]"), strings.Index(prompt, "[ITEM 9]"))

	zh := zhLocale.DetailPrompt(b, "中文", 5)
	assert.Contains(t, zh, "A, B, C, D, E 等 (7位作者)")
}

func TestLookupLocale(t *testing.T) {
	loc, err := LookupLocale("")
	require.NoError(t, err)
	assert.Equal(t, LocaleZH, loc.Name)

	loc, err = LookupLocale("EN")
	require.NoError(t, err)
	assert.Equal(t, LocaleEN, loc.Name)

	_, err = LookupLocale("fr")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
