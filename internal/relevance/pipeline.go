package relevance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
	"github.com/Wt-Zhou/arxiv-agent/internal/llm"
	"github.com/Wt-Zhou/arxiv-agent/internal/logging"
)

var tracer = otel.Tracer("github.com/Wt-Zhou/arxiv-agent/internal/relevance")

// State is a step of a pipeline run.
type State int

const (
	StateIdle State = iota
	StateScreening
	StateFiltering
	StateDetailing
	StateMerged
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScreening:
		return "screening"
	case StateFiltering:
		return "filtering"
	case StateDetailing:
		return "detailing"
	case StateMerged:
		return "merged"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Config struct {
	MaxConcurrent       int
	ScreeningBatchSize  int
	DetailBatchSize     int
	MinRelevance        content.Level
	ScreeningMaxTokens  int
	DetailMaxTokens     int
	AbstractLimit       int
	AuthorLimit         int
	RequestTimeout      time.Duration
	Locale              string
	TranslationLanguage string
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:       5,
		ScreeningBatchSize:  25,
		DetailBatchSize:     8,
		MinRelevance:        content.LevelMedium,
		ScreeningMaxTokens:  3072,
		DetailMaxTokens:     4096,
		AbstractLimit:       800,
		AuthorLimit:         5,
		RequestTimeout:      60 * time.Second,
		Locale:              LocaleZH,
		TranslationLanguage: "Chinese",
	}
}

// Validate reports the first configuration problem, wrapped in
// ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrent < 1:
		return fmt.Errorf("%w: max_concurrent must be at least 1, got %d", ErrInvalidConfig, c.MaxConcurrent)
	case c.ScreeningBatchSize < 1:
		return fmt.Errorf("%w: batch_size must be at least 1, got %d", ErrInvalidConfig, c.ScreeningBatchSize)
	case c.DetailBatchSize < 1:
		return fmt.Errorf("%w: detail_batch_size must be at least 1, got %d", ErrInvalidConfig, c.DetailBatchSize)
	case c.ScreeningMaxTokens < 1 || c.DetailMaxTokens < 1:
		return fmt.Errorf("%w: max tokens must be positive", ErrInvalidConfig)
	case c.RequestTimeout < 0:
		return fmt.Errorf("%w: request_timeout must not be negative", ErrInvalidConfig)
	}
	if c.MinRelevance.Rank() == 0 {
		return fmt.Errorf("%w: min_relevance must be high, medium or low, got %q", ErrInvalidConfig, c.MinRelevance)
	}
	if strings.TrimSpace(c.TranslationLanguage) == "" {
		return fmt.Errorf("%w: translation_language is required", ErrInvalidConfig)
	}
	if _, err := LookupLocale(c.Locale); err != nil {
		return err
	}
	return nil
}

// Stats summarizes one run.
type Stats struct {
	Total         int                   `json:"total"`
	Levels        map[content.Level]int `json:"levels"`
	Relevant      int                   `json:"relevant"`
	Candidates    int                   `json:"candidates"`
	Enriched      int                   `json:"enriched"`
	FailedBatches map[string]int        `json:"failed_batches"`
	PeakInFlight  int                   `json:"peak_in_flight"`
	Duration      time.Duration         `json:"duration"`
}

// Result is the outcome of a run: every input item in input order, each
// annotated, plus the transitions taken and the batches that degraded.
type Result struct {
	Items       []content.Item
	Transitions []State
	Failures    []BatchError
	Stats       Stats
}

// Relevant returns the relevance-sorted view of the annotated items.
func (r Result) Relevant(min content.Level) []content.Item {
	return FilterRelevant(r.Items, min)
}

type Pipeline struct {
	cfg       Config
	client    llm.CompletionClient
	locale    *Locale
	screening *ScreeningStage
	detail    *DetailStage
	logger    *zap.Logger
}

// New validates cfg and builds a pipeline around client. With a nil logger
// each run logs to the logger carried by its context.
func New(client llm.CompletionClient, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: completion client is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	locale, _ := LookupLocale(cfg.Locale)
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		locale:    locale,
		screening: NewScreeningStage(locale, cfg.ScreeningBatchSize, cfg.ScreeningMaxTokens, cfg.AbstractLimit),
		detail:    NewDetailStage(locale, cfg.DetailBatchSize, cfg.DetailMaxTokens, cfg.AuthorLimit, cfg.TranslationLanguage),
		logger:    logger,
	}, nil
}

func (p *Pipeline) Run(ctx context.Context, items []content.Item, in Interests) (Result, error) {
	return p.RunWithProgress(ctx, items, in, nil)
}

// RunWithProgress screens every item, enriches the ones at or above the
// minimum relevance and merges both back in input order. Backend failures
// degrade the affected items only; an error is returned for bad input or a
// context that was already done.
func (p *Pipeline) RunWithProgress(ctx context.Context, items []content.Item, in Interests, progress ProgressFn) (Result, error) {
	if in.Empty() {
		return Result{}, fmt.Errorf("%w: research interests are required", ErrInvalidConfig)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	gate, err := NewGate(p.cfg.MaxConcurrent)
	if err != nil {
		return Result{}, err
	}
	started := time.Now()
	ctx, span := tracer.Start(ctx, "relevance.run")
	span.SetAttributes(attribute.Int("items", len(items)), attribute.String("model", p.client.ModelName()))
	defer span.End()

	logger := p.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	d := dispatcher{client: p.client, gate: gate, timeout: p.cfg.RequestTimeout, logger: logger, progress: progress}
	res := Result{Transitions: []State{StateIdle}}
	enter := func(s State) {
		res.Transitions = append(res.Transitions, s)
		emit(progress, s.String(), fmt.Sprintf("entering %s", s))
	}

	enter(StateScreening)
	entries := EntriesOf(items)
	verdicts, failures, err := p.screening.run(ctx, d, entries, in)
	if err != nil {
		return Result{}, err
	}
	res.Failures = append(res.Failures, failures...)

	enter(StateFiltering)
	var candidates []Entry
	for _, e := range entries {
		v := verdicts[e.Index]
		if v.Level.Relevant() && v.Level.Rank() >= p.cfg.MinRelevance.Rank() {
			candidates = append(candidates, e)
		}
	}
	logger.Info("filtering_done",
		zap.Int("items", len(entries)),
		zap.Int("candidates", len(candidates)),
		zap.String("min_relevance", string(p.cfg.MinRelevance)))

	details := map[int]Detail{}
	if len(candidates) > 0 {
		enter(StateDetailing)
		details, failures, err = p.detail.run(ctx, d, candidates)
		if err != nil {
			return Result{}, err
		}
		res.Failures = append(res.Failures, failures...)
	}

	enter(StateMerged)
	res.Items = merge(items, verdicts, details)

	enter(StateDone)
	res.Stats = summarize(res.Items, len(candidates), res.Failures)
	res.Stats.PeakInFlight = gate.Peak()
	res.Stats.Duration = time.Since(started)
	logger.Info("relevance_run_done",
		zap.Int("items", res.Stats.Total),
		zap.Int("relevant", res.Stats.Relevant),
		zap.Int("enriched", res.Stats.Enriched),
		zap.Int("failed_batches", len(res.Failures)),
		zap.Int64("elapsed_ms", res.Stats.Duration.Milliseconds()))
	return res, nil
}

// merge copies items and attaches verdicts and enrichment by index. The
// input slice is left untouched.
func merge(items []content.Item, verdicts map[int]Verdict, details map[int]Detail) []content.Item {
	out := make([]content.Item, len(items))
	for i, it := range items {
		a := content.Unanalyzed()
		if v, ok := verdicts[i]; ok {
			a.RelevanceLevel = v.Level
			a.MatchedInterests = append([]string{}, v.Topics...)
			a.IsRelevant = v.Level.Relevant()
		}
		if a.IsRelevant {
			if d, ok := details[i]; ok {
				a.Affiliations = d.Affiliations
				a.TranslatedAbstract = d.Translation
				a.OneLineSummary = d.Summary
			}
		}
		it.Analysis = a
		out[i] = it
	}
	return out
}

func summarize(items []content.Item, candidates int, failures []BatchError) Stats {
	st := Stats{
		Total:         len(items),
		Levels:        map[content.Level]int{},
		Candidates:    candidates,
		FailedBatches: map[string]int{},
	}
	for _, it := range items {
		st.Levels[it.Analysis.RelevanceLevel]++
		if it.Analysis.IsRelevant {
			st.Relevant++
		}
		if it.Analysis.Enriched() {
			st.Enriched++
		}
	}
	for _, f := range failures {
		st.FailedBatches[f.Stage]++
	}
	return st
}
