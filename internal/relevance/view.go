package relevance

import (
	"sort"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

// FilterRelevant returns the items ranked at or above min, most relevant
// first. Items of equal rank keep their input order.
func FilterRelevant(items []content.Item, min content.Level) []content.Item {
	threshold := min.Rank()
	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if r := it.Analysis.RelevanceLevel.Rank(); r > 0 && r >= threshold {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Analysis.RelevanceLevel.Rank() > out[j].Analysis.RelevanceLevel.Rank()
	})
	return out
}
