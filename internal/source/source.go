package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

// Source yields items for one run.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]content.Item, error)
}

// Collect fetches every source in order and drops repeated URLs. A failing
// source is logged and skipped as long as another one produced items.
func Collect(ctx context.Context, sources []Source, logger *zap.Logger) ([]content.Item, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		all      []content.Item
		firstErr error
	)
	for _, s := range sources {
		items, err := s.Fetch(ctx)
		if err != nil {
			logger.Warn("source_fetch_failed", zap.String("source", s.Name()), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", s.Name(), err)
			}
			continue
		}
		logger.Info("source_fetched", zap.String("source", s.Name()), zap.Int("items", len(items)))
		all = append(all, items...)
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}
	unique := content.DedupeByURL(all)
	if dropped := len(all) - len(unique); dropped > 0 {
		logger.Info("source_duplicates_dropped", zap.Int("dropped", dropped))
	}
	return unique, nil
}

// FileSource reads a JSON array of items, for instance posts exported from a
// social feed or a previous run's results.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return "file:" + f.Path }

func (f FileSource) Fetch(ctx context.Context) ([]content.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var items []content.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	for i := range items {
		if items[i].Source == "" {
			items[i].Source = "file"
		}
		// Annotations from an earlier run are not carried into a new one.
		items[i].Analysis = content.Analysis{}
	}
	return items, nil
}
