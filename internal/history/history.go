package history

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
)

// Store keeps past runs and the URLs they reported in SQLite.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	total_items   INTEGER NOT NULL DEFAULT 0,
	relevant      INTEGER NOT NULL DEFAULT 0,
	enriched      INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	report_path   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS seen_items (
	url             TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	relevance_level TEXT NOT NULL DEFAULT '',
	first_run_id    TEXT NOT NULL,
	first_seen_at   TEXT NOT NULL
);
`

// Open creates the database at path if needed.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Model      string
	Total      int
	Relevant   int
	Enriched   int
	Failed     int
	ReportPath string
}

func NewRunID() string { return uuid.NewString() }

// SeenURLs returns which of urls were recorded by an earlier run.
func (s *Store) SeenURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	seen := map[string]bool{}
	if len(urls) == 0 {
		return seen, nil
	}
	// Stay well below SQLite's bound-variable limit.
	const chunk = 500
	for start := 0; start < len(urls); start += chunk {
		part := urls[start:min(start+chunk, len(urls))]
		query, args, err := sq.Select("url").From("seen_items").Where(sq.Eq{"url": part}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build seen query: %w", err)
		}
		var found []string
		if err := s.db.SelectContext(ctx, &found, query, args...); err != nil {
			return nil, fmt.Errorf("query seen urls: %w", err)
		}
		for _, u := range found {
			seen[u] = true
		}
	}
	return seen, nil
}

// FilterUnseen drops items whose URL an earlier run already reported.
func (s *Store) FilterUnseen(ctx context.Context, items []content.Item) ([]content.Item, error) {
	urls := make([]string, 0, len(items))
	for _, it := range items {
		if it.URL != "" {
			urls = append(urls, it.URL)
		}
	}
	seen, err := s.SeenURLs(ctx, urls)
	if err != nil {
		return nil, err
	}
	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if it.URL == "" || !seen[it.URL] {
			out = append(out, it)
		}
	}
	return out, nil
}

// RecordRun stores run and marks every item with a URL as seen. Items seen
// before keep their first run.
func (s *Store) RecordRun(ctx context.Context, run Run, items []content.Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Insert("runs").
		Columns("run_id", "started_at", "finished_at", "model", "total_items", "relevant", "enriched", "failed", "report_path").
		Values(run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Model, run.Total, run.Relevant, run.Enriched, run.Failed, run.ReportPath).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	now := formatTime(run.FinishedAt)
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		query, args, err := sq.Insert("seen_items").
			Options("OR IGNORE").
			Columns("url", "title", "relevance_level", "first_run_id", "first_seen_at").
			Values(it.URL, it.Title, string(it.Analysis.RelevanceLevel), run.ID, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build seen insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert seen item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type runRow struct {
	ID         string `db:"run_id"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	Model      string `db:"model"`
	Total      int    `db:"total_items"`
	Relevant   int    `db:"relevant"`
	Enriched   int    `db:"enriched"`
	Failed     int    `db:"failed"`
	ReportPath string `db:"report_path"`
}

// Recent lists the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query, args, err := sq.Select("run_id", "started_at", "finished_at", "model", "total_items", "relevant", "enriched", "failed", "report_path").
		From("runs").
		OrderBy("started_at DESC").
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	out := make([]Run, len(rows))
	for i, r := range rows {
		out[i] = Run{
			ID:         r.ID,
			StartedAt:  parseTime(r.StartedAt),
			FinishedAt: parseTime(r.FinishedAt),
			Model:      r.Model,
			Total:      r.Total,
			Relevant:   r.Relevant,
			Enriched:   r.Enriched,
			Failed:     r.Failed,
			ReportPath: r.ReportPath,
		}
	}
	return out, nil
}

// Fixed width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
