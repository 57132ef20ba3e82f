package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
	"github.com/Wt-Zhou/arxiv-agent/internal/relevance"
)

// Envelope is everything a report is rendered from. It is saved as JSON next
// to the report so that render can rebuild markdown, HTML or PDF later
// without calling the backend again.
type Envelope struct {
	RunID        string          `json:"run_id"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Model        string          `json:"model,omitempty"`
	Locale       string          `json:"locale"`
	Analyzed     bool            `json:"analyzed"`
	MinRelevance content.Level   `json:"min_relevance,omitempty"`
	Interests    []string        `json:"research_interests,omitempty"`
	Prompt       string          `json:"research_prompt,omitempty"`
	Stats        relevance.Stats `json:"stats"`
	Failures     []Failure       `json:"failures,omitempty"`
	Items        []content.Item  `json:"items"`
}

// Failure is the serializable form of a degraded batch.
type Failure struct {
	Stage string `json:"stage"`
	Batch int    `json:"batch"`
	Items []int  `json:"items"`
	Error string `json:"error"`
}

func FailuresFrom(errs []relevance.BatchError) []Failure {
	out := make([]Failure, 0, len(errs))
	for _, e := range errs {
		out = append(out, Failure{Stage: e.Stage, Batch: e.Batch, Items: e.Items, Error: e.Err.Error()})
	}
	return out
}

// Reported returns the items that belong in the report body: the relevance
// sorted view for an analyzed run, everything newest first otherwise.
func (e Envelope) Reported() []content.Item {
	if e.Analyzed {
		return relevance.FilterRelevant(e.Items, e.MinRelevance)
	}
	return newestFirst(e.Items)
}

func SaveEnvelope(path string, env Envelope) error {
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

func LoadEnvelope(path string) (Envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, fmt.Errorf("read envelope: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Analyzed && env.MinRelevance.Rank() == 0 {
		return Envelope{}, fmt.Errorf("envelope %s: min_relevance %q is not a threshold", path, env.MinRelevance)
	}
	return env, nil
}
