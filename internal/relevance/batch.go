package relevance

import (
	"fmt"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

// Entry pairs an item with its index in the caller's collection.
type Entry struct {
	Index int
	Item  content.Item
}

// Batch is a contiguous, index-preserving group handled by one backend call.
type Batch struct {
	Seq     int
	Entries []Entry
}

func (b Batch) Indices() []int {
	out := make([]int, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Index
	}
	return out
}

func (b Batch) Contains(index int) bool {
	for _, e := range b.Entries {
		if e.Index == index {
			return true
		}
	}
	return false
}

// EntriesOf numbers items by their position.
func EntriesOf(items []content.Item) []Entry {
	out := make([]Entry, len(items))
	for i, it := range items {
		out[i] = Entry{Index: i, Item: it}
	}
	return out
}

// Plan splits entries into ceil(N/size) contiguous batches; the last one may be
// short. Order and indices are preserved, nothing is dropped or duplicated.
func Plan(entries []Entry, size int) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, size)
	}
	batches := make([]Batch, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		batches = append(batches, Batch{Seq: len(batches), Entries: entries[start:end:end]})
	}
	return batches, nil
}
