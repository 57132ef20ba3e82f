package relevance

import (
	"context"

	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/metrics"
)

// DetailStage enriches the items that passed screening.
type DetailStage struct {
	locale      *Locale
	batchSize   int
	maxTokens   int
	authorLimit int
	language    string
}

func NewDetailStage(locale *Locale, batchSize, maxTokens, authorLimit int, language string) *DetailStage {
	return &DetailStage{locale: locale, batchSize: batchSize, maxTokens: maxTokens, authorLimit: authorLimit, language: language}
}

// run returns at most one record per entry. Entries of a failed batch and
// entries whose section was malformed are simply absent.
func (s *DetailStage) run(ctx context.Context, d dispatcher, entries []Entry) (map[int]Detail, []BatchError, error) {
	batches, err := Plan(entries, s.batchSize)
	if err != nil {
		return nil, nil, err
	}
	ctx, span := tracer.Start(ctx, "relevance.detail")
	defer span.End()
	d.logger.Info("detail_started", zap.Int("items", len(entries)), zap.Int("batches", len(batches)))

	outcomes := fanOut(ctx, d, StageDetail, batches, s.maxTokens,
		func(b Batch) string { return s.locale.DetailPrompt(b, s.language, s.authorLimit) },
		s.locale.ParseDetail,
		func(r Detail) int { return r.Index },
	)

	details := map[int]Detail{}
	var failures []BatchError
	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, BatchError{Stage: StageDetail, Batch: o.batch.Seq, Items: o.batch.Indices(), Err: o.err})
			continue
		}
		for idx, rec := range o.records {
			details[idx] = rec
		}
	}
	metrics.EnrichedItemsTotal.Add(float64(len(details)))
	return details, failures, nil
}
