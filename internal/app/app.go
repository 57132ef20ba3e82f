package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/config"
	"github.com/Wt-Zhou/arxiv-agent/internal/content"
	"github.com/Wt-Zhou/arxiv-agent/internal/history"
	"github.com/Wt-Zhou/arxiv-agent/internal/llm"
	"github.com/Wt-Zhou/arxiv-agent/internal/logging"
	"github.com/Wt-Zhou/arxiv-agent/internal/metrics"
	"github.com/Wt-Zhou/arxiv-agent/internal/relevance"
	"github.com/Wt-Zhou/arxiv-agent/internal/report"
	"github.com/Wt-Zhou/arxiv-agent/internal/source"
	"github.com/Wt-Zhou/arxiv-agent/internal/telemetry"
)

// Options are per-invocation switches that do not live in config.yaml.
type Options struct {
	NoAnalysis bool
	Input      string
	Version    string
}

// App runs one fetch, analyze, report cycle.
type App struct {
	cfg    config.Config
	opts   Options
	logger *zap.Logger
	out    io.Writer

	newClient func(llm.Config) (llm.CompletionClient, error)
	sources   func() []source.Source
	pdf       report.PDFRenderer
	now       func() time.Time
}

func New(cfg config.Config, opts Options, logger *zap.Logger, out io.Writer) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	a := &App{
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		out:       out,
		newClient: llm.New,
		now:       time.Now,
	}
	a.sources = a.defaultSources
	if cfg.WantsFormat(report.FormatPDF) {
		a.pdf = report.NewChromiumPDFRenderer(cfg.PDF())
	}
	return a
}

func (a *App) defaultSources() []source.Source {
	if a.opts.Input != "" {
		return []source.Source{source.FileSource{Path: a.opts.Input}}
	}
	return []source.Source{source.NewArxivSource(nil, source.ArxivConfig{
		BaseURL:    a.cfg.ArxivAPIURL,
		Categories: a.cfg.ArxivCategories,
		MaxResults: a.cfg.MaxResults,
		DaysBack:   a.cfg.DaysBack,
	}, a.logger)}
}

// Outcome summarizes a finished cycle.
type Outcome struct {
	RunID    string
	Items    int
	Relevant int
	Written  report.Written
}

// Run executes the cycle. Configuration problems surface before any network
// call; backend failures only degrade the affected items.
func (a *App) Run(ctx context.Context) (Outcome, error) {
	analyze := !a.opts.NoAnalysis
	if err := a.cfg.Validate(analyze); err != nil {
		return Outcome{}, err
	}

	var pipeline *relevance.Pipeline
	var client llm.CompletionClient
	if analyze {
		pc, err := a.cfg.Pipeline()
		if err != nil {
			return Outcome{}, err
		}
		base, err := a.newClient(a.cfg.LLM())
		if err != nil {
			return Outcome{}, fmt.Errorf("llm client: %w", err)
		}
		client = llm.WithRetry(base, a.cfg.MaxAttempts, a.cfg.RequestTimeout, a.logger)
		if a.cfg.MaxAttempts > 1 {
			// The retrying client bounds every attempt itself.
			pc.RequestTimeout = 0
		}
		// Runs log through the run-scoped logger placed in their context.
		if pipeline, err = relevance.New(client, pc, nil); err != nil {
			return Outcome{}, err
		}
	}

	shutdown, err := telemetry.Setup(ctx, a.cfg.OTLPEndpoint, a.opts.Version)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			a.logger.Warn("telemetry_shutdown_failed", zap.Error(err))
		}
	}()

	var store *history.Store
	if a.cfg.HistoryDB != "" {
		if store, err = history.Open(a.cfg.HistoryDB); err != nil {
			return Outcome{}, err
		}
		defer store.Close()
	}

	started := a.now()
	runID := history.NewRunID()
	logger := a.logger.With(zap.String("run_id", runID))

	items, err := source.Collect(ctx, a.sources(), logger)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch items: %w", err)
	}
	if store != nil && a.cfg.SkipSeen {
		before := len(items)
		if items, err = store.FilterUnseen(ctx, items); err != nil {
			return Outcome{}, err
		}
		logger.Info("history_seen_skipped", zap.Int("skipped", before-len(items)))
	}
	if len(items) == 0 {
		logger.Info("no_items_found")
		fmt.Fprintln(a.out, "No items found.")
		return Outcome{RunID: runID}, nil
	}

	env := report.Envelope{
		RunID:       runID,
		GeneratedAt: started,
		Locale:      a.cfg.Locale,
		Analyzed:    analyze,
		Interests:   a.cfg.Interests().Keywords,
		Prompt:      a.cfg.Interests().Prompt,
	}
	if level, err := content.ParseThreshold(a.cfg.MinRelevance); err == nil {
		env.MinRelevance = level
	}
	if analyze {
		res, err := pipeline.RunWithProgress(logging.ContextWithLogger(ctx, logger), items, a.cfg.Interests(), func(stage, msg string) {
			logger.Debug("relevance_progress", zap.String("stage", stage), zap.String("message", msg))
		})
		if err != nil {
			return Outcome{}, err
		}
		env.Model = client.ModelName()
		env.Items = res.Items
		env.Stats = res.Stats
		env.Failures = report.FailuresFrom(res.Failures)
	} else {
		env.Items = make([]content.Item, len(items))
		for i, it := range items {
			it.Analysis = content.Unanalyzed()
			env.Items[i] = it
		}
		env.Stats = relevance.Stats{Total: len(items)}
	}

	writer := report.Writer{Dir: a.cfg.OutputDir, Formats: a.cfg.ReportFormats, PDF: a.pdf, Logger: logger}
	written, err := writer.Write(ctx, env)
	if err != nil {
		return Outcome{}, err
	}

	reported := env.Reported()
	if store != nil {
		run := history.Run{
			ID:         runID,
			StartedAt:  started,
			FinishedAt: a.now(),
			Model:      env.Model,
			Total:      len(env.Items),
			Relevant:   len(reported),
			Enriched:   env.Stats.Enriched,
			Failed:     len(env.Failures),
			ReportPath: written.Primary(),
		}
		if err := store.RecordRun(ctx, run, env.Items); err != nil {
			return Outcome{}, err
		}
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		logger.Warn("metrics_write_failed", zap.Error(err))
	}

	report.WriteTable(a.out, env)
	fmt.Fprintf(a.out, "\n%s\n", report.SummaryText(env))
	if p := written.Primary(); p != "" {
		fmt.Fprintf(a.out, "\nReport: %s\n", p)
	}
	return Outcome{RunID: runID, Items: len(env.Items), Relevant: len(reported), Written: written}, nil
}
