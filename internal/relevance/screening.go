package relevance

import (
	"context"

	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
	"github.com/Wt-Zhou/arxiv-agent/internal/metrics"
)

// ScreeningStage asks for a coarse verdict on every item, one call per batch.
type ScreeningStage struct {
	locale        *Locale
	batchSize     int
	maxTokens     int
	abstractLimit int
}

func NewScreeningStage(locale *Locale, batchSize, maxTokens, abstractLimit int) *ScreeningStage {
	return &ScreeningStage{locale: locale, batchSize: batchSize, maxTokens: maxTokens, abstractLimit: abstractLimit}
}

// run returns exactly one verdict per entry, keyed by entry index. Items of a
// failed batch, and items the response never mentions, get LevelUnknown.
func (s *ScreeningStage) run(ctx context.Context, d dispatcher, entries []Entry, in Interests) (map[int]Verdict, []BatchError, error) {
	batches, err := Plan(entries, s.batchSize)
	if err != nil {
		return nil, nil, err
	}
	ctx, span := tracer.Start(ctx, "relevance.screening")
	defer span.End()
	d.logger.Info("screening_started", zap.Int("items", len(entries)), zap.Int("batches", len(batches)))

	outcomes := fanOut(ctx, d, StageScreening, batches, s.maxTokens,
		func(b Batch) string { return s.locale.ScreeningPrompt(b, in, s.abstractLimit) },
		s.locale.ParseScreening,
		func(v Verdict) int { return v.Index },
	)

	verdicts := make(map[int]Verdict, len(entries))
	var failures []BatchError
	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, BatchError{Stage: StageScreening, Batch: o.batch.Seq, Items: o.batch.Indices(), Err: o.err})
		}
		for _, e := range o.batch.Entries {
			v, ok := o.records[e.Index]
			if !ok {
				v = Verdict{Index: e.Index, Level: content.LevelUnknown, Topics: []string{}}
			}
			verdicts[e.Index] = v
			metrics.VerdictsTotal.WithLabelValues(string(v.Level)).Inc()
		}
	}
	return verdicts, failures, nil
}
