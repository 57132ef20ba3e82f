package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/history"
	"github.com/Wt-Zhou/arxiv-agent/internal/report"
)

// Render rebuilds reports from a saved JSON envelope without calling any
// backend. The envelope's own generation date names the output files.
func Render(ctx context.Context, envelopePath string, w report.Writer) (report.Written, error) {
	env, err := report.LoadEnvelope(envelopePath)
	if err != nil {
		return nil, err
	}
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	w.Logger.Info("render_envelope",
		zap.String("path", envelopePath),
		zap.String("run_id", env.RunID),
		zap.Int("items", len(env.Items)),
	)
	return w.Write(ctx, env)
}

// RecentRuns lists the newest runs recorded in the history database.
func RecentRuns(ctx context.Context, dbPath string, limit int) ([]history.Run, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("history database not configured")
	}
	store, err := history.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Recent(ctx, limit)
}
