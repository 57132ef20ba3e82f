package relevance

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Wt-Zhou/arxiv-agent/internal/llm"
	"github.com/Wt-Zhou/arxiv-agent/internal/metrics"
)

// ProgressFn receives human readable progress notes keyed by stage. It may be
// called from several goroutines at once.
type ProgressFn func(stage, message string)

func emit(progress ProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}

// dispatcher issues one backend call per batch through the shared gate.
type dispatcher struct {
	client   llm.CompletionClient
	gate     *Gate
	timeout  time.Duration
	logger   *zap.Logger
	progress ProgressFn
}

type outcome[T any] struct {
	batch   Batch
	records map[int]T
	err     error
}

// fanOut runs every batch concurrently and returns once all have settled.
// A batch that fails to call or parse comes back with err set and no
// records; it never affects its siblings. Records are keyed by item index
// and restricted to the batch's own items.
func fanOut[T any](
	ctx context.Context,
	d dispatcher,
	stage string,
	batches []Batch,
	maxTokens int,
	prompt func(Batch) string,
	parse func(string) []T,
	indexOf func(T) int,
) []outcome[T] {
	results := make(chan outcome[T], len(batches))
	var g errgroup.Group
	for _, b := range batches {
		g.Go(func() error {
			res := outcome[T]{batch: b}
			res.records, res.err = runBatch(ctx, d, stage, b, maxTokens, prompt, parse, indexOf)
			results <- res
			emit(d.progress, stage, fmt.Sprintf("batch %d/%d settled", b.Seq+1, len(batches)))
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]outcome[T], 0, len(batches))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func runBatch[T any](
	ctx context.Context,
	d dispatcher,
	stage string,
	b Batch,
	maxTokens int,
	prompt func(Batch) string,
	parse func(string) []T,
	indexOf func(T) int,
) (records map[int]T, err error) {
	ctx, span := tracer.Start(ctx, "relevance."+stage+".batch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("stage", stage),
			attribute.Int("batch", b.Seq),
			attribute.Int("items", len(b.Entries)),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("batch panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	text := prompt(b)
	var response string
	err = d.gate.Do(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		started := time.Now()
		resp, callErr := d.client.Complete(callCtx, text, maxTokens)
		metrics.BatchCallDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
		response = resp
		return callErr
	})
	if err != nil {
		metrics.BatchCallsTotal.WithLabelValues(stage, "transport_error").Inc()
		d.logger.Warn(stage+"_batch_failed",
			zap.Int("batch", b.Seq),
			zap.Ints("items", b.Indices()),
			zap.String("class", llm.Classify(err).String()),
			zap.Error(err))
		return nil, err
	}

	records = map[int]T{}
	for _, rec := range parse(response) {
		idx := indexOf(rec)
		if !b.Contains(idx) {
			d.logger.Warn(stage+"_foreign_index", zap.Int("batch", b.Seq), zap.Int("index", idx))
			continue
		}
		if _, dup := records[idx]; dup {
			d.logger.Warn(stage+"_duplicate_index", zap.Int("batch", b.Seq), zap.Int("index", idx))
			continue
		}
		records[idx] = rec
	}
	if len(records) == 0 {
		metrics.BatchCallsTotal.WithLabelValues(stage, "parse_error").Inc()
		d.logger.Warn(stage+"_batch_unparseable",
			zap.Int("batch", b.Seq),
			zap.Int("response_len", len(response)))
		return nil, ErrUnparseable
	}
	metrics.BatchCallsTotal.WithLabelValues(stage, "ok").Inc()
	if missing := len(b.Entries) - len(records); missing > 0 {
		d.logger.Warn(stage+"_items_missing", zap.Int("batch", b.Seq), zap.Int("missing", missing))
	}
	return records, nil
}
