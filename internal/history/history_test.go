package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRunMarksURLsSeen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	items := []content.Item{
		{Title: "a", URL: "http://arxiv.org/abs/1", Analysis: content.Analysis{RelevanceLevel: content.LevelHigh}},
		{Title: "b", URL: "http://arxiv.org/abs/2"},
		{Title: "no url"},
	}
	run := Run{ID: NewRunID(), StartedAt: started, FinishedAt: started.Add(time.Minute), Model: "m", Total: 3, Relevant: 1}
	require.NoError(t, s.RecordRun(ctx, run, items))

	seen, err := s.SeenURLs(ctx, []string{"http://arxiv.org/abs/1", "http://arxiv.org/abs/3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"http://arxiv.org/abs/1": true}, seen)

	fresh, err := s.FilterUnseen(ctx, []content.Item{
		{Title: "old", URL: "http://arxiv.org/abs/2"},
		{Title: "new", URL: "http://arxiv.org/abs/9"},
		{Title: "post without url"},
	})
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "new", fresh[0].Title)
	assert.Equal(t, "post without url", fresh[1].Title)
}

func TestRecordRunTwiceKeepsFirstSighting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	items := []content.Item{{Title: "a", URL: "u"}}
	t0 := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	first := Run{ID: NewRunID(), StartedAt: t0, FinishedAt: t0}
	second := Run{ID: NewRunID(), StartedAt: t0.Add(24 * time.Hour), FinishedAt: t0.Add(24 * time.Hour), Total: 1}
	require.NoError(t, s.RecordRun(ctx, first, items))
	require.NoError(t, s.RecordRun(ctx, second, items))

	var firstRun string
	require.NoError(t, s.db.Get(&firstRun, "SELECT first_run_id FROM seen_items WHERE url = ?", "u"))
	assert.Equal(t, first.ID, firstRun)

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Total)
	assert.True(t, runs[0].StartedAt.Equal(second.StartedAt))
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.RecordRun(ctx, Run{ID: NewRunID(), StartedAt: at, FinishedAt: at}, nil))
	}
	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestSeenURLsEmpty(t *testing.T) {
	s := openTestStore(t)
	seen, err := s.SeenURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, seen)
}
