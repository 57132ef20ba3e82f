package relevance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
	"github.com/Wt-Zhou/arxiv-agent/internal/logging"
)

func titleOf(i int) string { return fmt.Sprintf("paper-%02d", i) }

// fakeBackend answers prompts through respond and records every call.
type fakeBackend struct {
	respond func(stage string, indices []int) (string, error)
	delay   func(stage string, indices []int) time.Duration

	mu    sync.Mutex
	calls map[string]int

	cur, peak atomic.Int64
}

func (f *fakeBackend) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	stage := StageScreening
	if strings.Contains(prompt, enLocale.detail.intro) {
		stage = StageDetail
	}
	indices := promptIndices(prompt)

	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[stage]++
	f.mu.Unlock()

	n := f.cur.Add(1)
	defer f.cur.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay != nil {
		select {
		case <-time.After(f.delay(stage, indices)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.respond(stage, indices)
}

func (f *fakeBackend) ModelName() string { return "fake-model" }

func (f *fakeBackend) callCount(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func promptIndices(prompt string) []int {
	var out []int
	for _, m := range enLocale.marker.FindAllStringSubmatch(prompt, -1) {
		n, _ := strconv.Atoi(m[1])
		out = append(out, n)
	}
	return out
}

func screeningLine(i int, level content.Level, topics string) string {
	return fmt.Sprintf("[ITEM %d] Relevance: %s | Matched topics: %s\n", i, level, topics)
}

func detailSection(i int) string {
	return fmt.Sprintf("[ITEM %d]\n1. Affiliations: Lab %d\n2. Translation: translated %d\n3. Summary: summary %d\n", i, i, i, i)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Locale = LocaleEN
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

var interests = Interests{Keywords: []string{"robotics", "world models"}}

func newTestPipeline(t *testing.T, backend *fakeBackend, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(backend, cfg, nil)
	require.NoError(t, err)
	return p
}

func indicesOf(items []content.Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		n, _ := strconv.Atoi(strings.TrimPrefix(it.Title, "paper-"))
		out[i] = n
	}
	return out
}

func TestEndToEndThirtyItems(t *testing.T) {
	high := map[int]bool{3: true, 14: true, 27: true}
	backend := &fakeBackend{respond: func(stage string, indices []int) (string, error) {
		var b strings.Builder
		for _, i := range indices {
			switch {
			case stage == StageDetail && i == 14:
				b.WriteString("[ITEM 14]\nI cannot help with that.\n")
			case stage == StageDetail:
				b.WriteString(detailSection(i))
			case high[i]:
				b.WriteString(screeningLine(i, content.LevelHigh, "robotics"))
			case i%2 == 0:
				b.WriteString(screeningLine(i, content.LevelLow, "vision"))
			default:
				b.WriteString(screeningLine(i, content.LevelNone, "none"))
			}
		}
		return b.String(), nil
	}}
	cfg := testConfig()
	cfg.ScreeningBatchSize = 10
	cfg.MaxConcurrent = 2
	cfg.DetailBatchSize = 8

	var progressMu sync.Mutex
	var notes []string
	res, err := newTestPipeline(t, backend, cfg).RunWithProgress(context.Background(), makeItems(30), interests, func(stage, msg string) {
		progressMu.Lock()
		notes = append(notes, stage+": "+msg)
		progressMu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 30)
	assert.Equal(t, []State{StateIdle, StateScreening, StateFiltering, StateDetailing, StateMerged, StateDone}, res.Transitions)
	assert.Equal(t, 3, backend.callCount(StageScreening))
	assert.Equal(t, 1, backend.callCount(StageDetail))
	assert.LessOrEqual(t, backend.peak.Load(), int64(2))
	assert.Empty(t, res.Failures)

	relevant := res.Relevant(content.LevelMedium)
	assert.Equal(t, []int{3, 14, 27}, indicesOf(relevant))

	for _, i := range []int{3, 27} {
		a := res.Items[i].Analysis
		assert.Equal(t, content.LevelHigh, a.RelevanceLevel)
		assert.True(t, a.IsRelevant)
		require.NotNil(t, a.Affiliations)
		assert.Equal(t, fmt.Sprintf("Lab %d", i), *a.Affiliations)
		assert.Equal(t, fmt.Sprintf("translated %d", i), a.TranslatedAbstract)
		assert.Equal(t, fmt.Sprintf("summary %d", i), a.OneLineSummary)
	}
	a14 := res.Items[14].Analysis
	assert.Equal(t, content.LevelHigh, a14.RelevanceLevel)
	assert.True(t, a14.IsRelevant)
	assert.False(t, a14.Enriched())

	assert.Equal(t, content.LevelLow, res.Items[4].Analysis.RelevanceLevel)
	assert.Equal(t, []string{"vision"}, res.Items[4].Analysis.MatchedInterests)
	assert.Equal(t, content.LevelNone, res.Items[5].Analysis.RelevanceLevel)
	assert.Empty(t, res.Items[5].Analysis.MatchedInterests)

	assert.Equal(t, 30, res.Stats.Total)
	assert.Equal(t, 3, res.Stats.Relevant)
	assert.Equal(t, 3, res.Stats.Candidates)
	assert.Equal(t, 2, res.Stats.Enriched)
	assert.Equal(t, 3, res.Stats.Levels[content.LevelHigh])
	assert.LessOrEqual(t, res.Stats.PeakInFlight, 2)
	assert.NotEmpty(t, notes)
}

func TestCompleteness(t *testing.T) {
	for _, n := range []int{0, 1, 7, 30} {
		for _, size := range []int{1, 3, 25} {
			backend := &fakeBackend{respond: func(stage string, indices []int) (string, error) {
				var b strings.Builder
				for _, i := range indices {
					// Some items are left out on purpose.
					if i%4 == 1 {
						continue
					}
					if stage == StageDetail {
						b.WriteString(detailSection(i))
						continue
					}
					b.WriteString(screeningLine(i, content.Levels[i%4], "x"))
				}
				return b.String(), nil
			}}
			cfg := testConfig()
			cfg.ScreeningBatchSize = size
			res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(n), interests)
			require.NoError(t, err)
			require.Len(t, res.Items, n)
			for i, it := range res.Items {
				assert.True(t, it.Analysis.RelevanceLevel.Valid())
				assert.Equal(t, titleOf(i), it.Title)
				if i%4 == 1 {
					assert.Equal(t, content.LevelUnknown, it.Analysis.RelevanceLevel)
				}
			}
		}
	}
}

func TestIndexFidelity(t *testing.T) {
	backend := &fakeBackend{respond: func(stage string, _ []int) (string, error) {
		if stage == StageDetail {
			return detailSection(0), nil
		}
		return "[ITEM 0] Relevance: high | Matched topics: robotics\n" +
			"[ITEM 1] %%% garbage %%%\n" +
			"[ITEM 2] Relevance: low | Matched topics: vision\n", nil
	}}
	cfg := testConfig()
	cfg.ScreeningBatchSize = 3
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(3), interests)
	require.NoError(t, err)

	assert.Equal(t, content.LevelHigh, res.Items[0].Analysis.RelevanceLevel)
	assert.Equal(t, []string{"robotics"}, res.Items[0].Analysis.MatchedInterests)
	assert.Equal(t, content.LevelUnknown, res.Items[1].Analysis.RelevanceLevel)
	assert.Empty(t, res.Items[1].Analysis.MatchedInterests)
	assert.Equal(t, content.LevelLow, res.Items[2].Analysis.RelevanceLevel)
	assert.Equal(t, []string{"vision"}, res.Items[2].Analysis.MatchedInterests)
}

func TestForeignAndDuplicateIndicesAreDropped(t *testing.T) {
	backend := &fakeBackend{respond: func(stage string, indices []int) (string, error) {
		if stage == StageDetail {
			return "", errors.New("no detail expected")
		}
		if indices[0] == 0 {
			return screeningLine(0, content.LevelLow, "a") +
				screeningLine(0, content.LevelHigh, "b") +
				screeningLine(3, content.LevelHigh, "stolen") +
				screeningLine(1, content.LevelNone, "none"), nil
		}
		return screeningLine(2, content.LevelNone, "none") + screeningLine(3, content.LevelLow, "own"), nil
	}}
	cfg := testConfig()
	cfg.ScreeningBatchSize = 2
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(4), interests)
	require.NoError(t, err)

	assert.Equal(t, content.LevelLow, res.Items[0].Analysis.RelevanceLevel)
	assert.Equal(t, []string{"a"}, res.Items[0].Analysis.MatchedInterests)
	assert.Equal(t, content.LevelLow, res.Items[3].Analysis.RelevanceLevel)
	assert.Equal(t, []string{"own"}, res.Items[3].Analysis.MatchedInterests)
}

func TestBatchIsolation(t *testing.T) {
	backend := &fakeBackend{respond: func(stage string, indices []int) (string, error) {
		if stage == StageScreening && indices[0] == 5 {
			return "", errors.New("status code: 502")
		}
		var b strings.Builder
		for _, i := range indices {
			if stage == StageDetail {
				b.WriteString(detailSection(i))
				continue
			}
			b.WriteString(screeningLine(i, content.LevelHigh, "robotics"))
		}
		return b.String(), nil
	}}
	cfg := testConfig()
	cfg.ScreeningBatchSize = 5
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(20), interests)
	require.NoError(t, err)

	for i, it := range res.Items {
		if i >= 5 && i <= 9 {
			assert.Equal(t, content.LevelUnknown, it.Analysis.RelevanceLevel, "item %d", i)
			assert.False(t, it.Analysis.Enriched())
			continue
		}
		assert.Equal(t, content.LevelHigh, it.Analysis.RelevanceLevel, "item %d", i)
		assert.True(t, it.Analysis.Enriched(), "item %d", i)
	}
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageScreening, res.Failures[0].Stage)
	assert.Equal(t, []int{5, 6, 7, 8, 9}, res.Failures[0].Items)
	assert.Equal(t, 1, res.Stats.FailedBatches[StageScreening])
}

func TestDetailFailureLeavesVerdicts(t *testing.T) {
	backend := &fakeBackend{respond: func(stage string, indices []int) (string, error) {
		if stage == StageDetail {
			return "", context.DeadlineExceeded
		}
		var b strings.Builder
		for _, i := range indices {
			b.WriteString(screeningLine(i, content.LevelMedium, "vision"))
		}
		return b.String(), nil
	}}
	res, err := newTestPipeline(t, backend, testConfig()).Run(context.Background(), makeItems(4), interests)
	require.NoError(t, err)

	for _, it := range res.Items {
		assert.Equal(t, content.LevelMedium, it.Analysis.RelevanceLevel)
		assert.True(t, it.Analysis.IsRelevant)
		assert.False(t, it.Analysis.Enriched())
	}
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageDetail, res.Failures[0].Stage)
}

func TestAllBatchesFailingStillCompletes(t *testing.T) {
	backend := &fakeBackend{respond: func(string, []int) (string, error) {
		return "", errors.New("connection refused")
	}}
	cfg := testConfig()
	cfg.ScreeningBatchSize = 4
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(10), interests)
	require.NoError(t, err)

	require.Len(t, res.Items, 10)
	for _, it := range res.Items {
		assert.Equal(t, content.LevelUnknown, it.Analysis.RelevanceLevel)
	}
	assert.Empty(t, res.Relevant(content.LevelLow))
	assert.Len(t, res.Failures, 3)
	assert.NotContains(t, res.Transitions, StateDetailing)
}

func TestUnparseableResponseIsRecorded(t *testing.T) {
	backend := &fakeBackend{respond: func(string, []int) (string, error) {
		return "I'd rather not.", nil
	}}
	res, err := newTestPipeline(t, backend, testConfig()).Run(context.Background(), makeItems(3), interests)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, &res.Failures[0], ErrUnparseable)
}

func TestRequestTimeoutDegradesBatch(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, []int) (string, error) { return "", nil },
		delay:   func(string, []int) time.Duration { return time.Minute },
	}
	cfg := testConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(2), interests)
	require.NoError(t, err)

	for _, it := range res.Items {
		assert.Equal(t, content.LevelUnknown, it.Analysis.RelevanceLevel)
	}
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, context.DeadlineExceeded)
}

func TestDetailSkippedWhenNothingRelevant(t *testing.T) {
	backend := &fakeBackend{respond: func(_ string, indices []int) (string, error) {
		var b strings.Builder
		for _, i := range indices {
			b.WriteString(screeningLine(i, content.LevelNone, "none"))
		}
		return b.String(), nil
	}}
	items := makeItems(6)
	res, err := newTestPipeline(t, backend, testConfig()).Run(context.Background(), items, interests)
	require.NoError(t, err)

	assert.Equal(t, []State{StateIdle, StateScreening, StateFiltering, StateMerged, StateDone}, res.Transitions)
	assert.Equal(t, 0, backend.callCount(StageDetail))

	want := make([]content.Item, len(items))
	for i, it := range items {
		it.Analysis = content.Analysis{RelevanceLevel: content.LevelNone, MatchedInterests: []string{}}
		want[i] = it
	}
	assert.Equal(t, want, res.Items)
}

func TestLowVerdictsAreNotDetailed(t *testing.T) {
	backend := &fakeBackend{respond: func(stage string, indices []int) (string, error) {
		var b strings.Builder
		for _, i := range indices {
			if stage == StageDetail {
				b.WriteString(detailSection(i))
				continue
			}
			level := content.LevelLow
			if i == 1 {
				level = content.LevelMedium
			}
			b.WriteString(screeningLine(i, level, "x"))
		}
		return b.String(), nil
	}}
	cfg := testConfig()
	cfg.MinRelevance = content.LevelHigh
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(3), interests)
	require.NoError(t, err)

	assert.NotContains(t, res.Transitions, StateDetailing)
	assert.True(t, res.Items[1].Analysis.IsRelevant)
	assert.False(t, res.Items[1].Analysis.Enriched())
	assert.False(t, res.Items[0].Analysis.IsRelevant)
}

func TestOrderPreservedUnderOutOfOrderCompletion(t *testing.T) {
	backend := &fakeBackend{
		respond: func(_ string, indices []int) (string, error) {
			return screeningLine(indices[0], content.Levels[indices[0]%4], "x"), nil
		},
		// Earlier batches finish last.
		delay: func(_ string, indices []int) time.Duration {
			return time.Duration(10-indices[0]) * 3 * time.Millisecond
		},
	}
	cfg := testConfig()
	cfg.ScreeningBatchSize = 1
	cfg.MaxConcurrent = 10
	cfg.MinRelevance = content.LevelHigh
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(10), interests)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, indicesOf(res.Items))
	for i, it := range res.Items {
		assert.Equal(t, content.Levels[i%4], it.Analysis.RelevanceLevel)
	}
}

func TestGateSharedAcrossStages(t *testing.T) {
	backend := &fakeBackend{
		respond: func(stage string, indices []int) (string, error) {
			var b strings.Builder
			for _, i := range indices {
				if stage == StageDetail {
					b.WriteString(detailSection(i))
					continue
				}
				b.WriteString(screeningLine(i, content.LevelHigh, "x"))
			}
			return b.String(), nil
		},
		delay: func(string, []int) time.Duration { return 5 * time.Millisecond },
	}
	cfg := testConfig()
	cfg.MaxConcurrent = 3
	cfg.ScreeningBatchSize = 2
	cfg.DetailBatchSize = 1
	res, err := newTestPipeline(t, backend, cfg).Run(context.Background(), makeItems(24), interests)
	require.NoError(t, err)

	assert.Equal(t, 12, backend.callCount(StageScreening))
	assert.Equal(t, 24, backend.callCount(StageDetail))
	assert.LessOrEqual(t, backend.peak.Load(), int64(3))
	assert.GreaterOrEqual(t, res.Stats.PeakInFlight, 1)
	assert.LessOrEqual(t, res.Stats.PeakInFlight, 3)
	assert.Equal(t, 24, res.Stats.Enriched)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	backend := &fakeBackend{respond: func(_ string, indices []int) (string, error) {
		return screeningLine(indices[0], content.LevelLow, "x"), nil
	}}
	items := makeItems(1)
	_, err := newTestPipeline(t, backend, testConfig()).Run(context.Background(), items, interests)
	require.NoError(t, err)
	assert.Equal(t, content.Level(""), items[0].Analysis.RelevanceLevel)
}

func TestThresholdMonotonicity(t *testing.T) {
	items := makeItems(12)
	for i := range items {
		lvl := content.Levels[i%len(content.Levels)]
		items[i].Analysis = content.Analysis{RelevanceLevel: lvl, IsRelevant: lvl.Relevant()}
	}
	high := indicesOf(FilterRelevant(items, content.LevelHigh))
	medium := indicesOf(FilterRelevant(items, content.LevelMedium))
	low := indicesOf(FilterRelevant(items, content.LevelLow))

	assert.Subset(t, medium, high)
	assert.Subset(t, low, medium)
	assert.Equal(t, []int{0, 5, 10}, high)
	assert.Equal(t, []int{0, 5, 10, 1, 6, 11}, medium)
	assert.Equal(t, []int{0, 5, 10, 1, 6, 11, 2, 7}, low)
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"zero concurrency":   func(c *Config) { c.MaxConcurrent = 0 },
		"zero batch":         func(c *Config) { c.ScreeningBatchSize = 0 },
		"negative detail":    func(c *Config) { c.DetailBatchSize = -2 },
		"threshold none":     func(c *Config) { c.MinRelevance = content.LevelNone },
		"unknown locale":     func(c *Config) { c.Locale = "xx" },
		"no tokens":          func(c *Config) { c.DetailMaxTokens = 0 },
		"negative timeout":   func(c *Config) { c.RequestTimeout = -time.Second },
		"no target language": func(c *Config) { c.TranslationLanguage = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := New(&fakeBackend{}, cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
	_, err := New(nil, testConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunRejectsMissingInterests(t *testing.T) {
	backend := &fakeBackend{respond: func(string, []int) (string, error) { return "", nil }}
	_, err := newTestPipeline(t, backend, testConfig()).Run(context.Background(), makeItems(1), Interests{Keywords: []string{" "}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, backend.callCount(StageScreening))
}

func TestRunRejectsDoneContext(t *testing.T) {
	backend := &fakeBackend{respond: func(string, []int) (string, error) { return "", nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(t, backend, testConfig()).Run(ctx, makeItems(1), interests)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLogsThroughContextLogger(t *testing.T) {
	backend := &fakeBackend{respond: func(_ string, indices []int) (string, error) {
		return screeningLine(indices[0], content.LevelNone, "none"), nil
	}}
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.ContextWithLogger(context.Background(), zap.New(core).With(zap.String("run_id", "r1")))

	_, err := newTestPipeline(t, backend, testConfig()).Run(ctx, makeItems(1), interests)
	require.NoError(t, err)

	done := logs.FilterMessage("relevance_run_done").All()
	require.Len(t, done, 1)
	assert.Equal(t, "r1", done[0].ContextMap()["run_id"])
	assert.Equal(t, 1, logs.FilterMessage("screening_started").Len())
}
