package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Wt-Zhou/arxiv-agent/internal/content"
	"github.com/Wt-Zhou/arxiv-agent/internal/llm"
	"github.com/Wt-Zhou/arxiv-agent/internal/relevance"
	"github.com/Wt-Zhou/arxiv-agent/internal/report"
)

const (
	DefaultPath = "config.yaml"

	apiKeyEnv          = "API_KEY"
	anthropicKeyEnv    = "ANTHROPIC_API_KEY"
	anthropicTokenEnv  = "ANTHROPIC_AUTH_TOKEN"
	anthropicBaseEnv   = "ANTHROPIC_BASE_URL"
	openAIKeyEnv       = "OPENAI_API_KEY"
	openAIBaseEnv      = "OPENAI_BASE_URL"
	modelEnv           = "ARXIV_AGENT_MODEL"
	logLevelEnv        = "ARXIV_AGENT_LOG_LEVEL"
	historyDBEnv       = "ARXIV_AGENT_HISTORY_DB"
	otlpEndpointEnv    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	defaultArxivAPIURL = "https://export.arxiv.org/api/query"
)

// Config mirrors config.yaml. Keys absent from the file keep their defaults.
type Config struct {
	ResearchInterests []string `yaml:"research_interests"`
	ResearchPrompt    string   `yaml:"research_prompt"`

	ArxivCategories []string `yaml:"arxiv_categories"`
	ArxivAPIURL     string   `yaml:"arxiv_api_url"`
	MaxResults      int      `yaml:"max_results"`
	DaysBack        int      `yaml:"days_back"`

	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
	APIBaseURL  string  `yaml:"api_base_url"`
	Temperature float64 `yaml:"temperature"`

	MaxConcurrent       int           `yaml:"max_concurrent"`
	BatchSize           int           `yaml:"batch_size"`
	DetailBatchSize     int           `yaml:"detail_batch_size"`
	MinRelevance        string        `yaml:"min_relevance"`
	ScreeningMaxTokens  int           `yaml:"screening_max_tokens"`
	DetailMaxTokens     int           `yaml:"detail_max_tokens"`
	AbstractLimit       int           `yaml:"abstract_limit"`
	AuthorLimit         int           `yaml:"author_limit"`
	Locale              string        `yaml:"locale"`
	TranslationLanguage string        `yaml:"translation_language"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	MaxAttempts         int           `yaml:"max_attempts"`

	OutputDir       string        `yaml:"output_dir"`
	ReportFormats   []string      `yaml:"report_formats"`
	PDFPaper        string        `yaml:"pdf_paper"`
	PDFLandscape    bool          `yaml:"pdf_landscape"`
	PDFTimeout      time.Duration `yaml:"pdf_timeout"`
	HistoryDB       string        `yaml:"history_db"`
	SkipSeen        bool          `yaml:"skip_seen"`
	MetricsTextfile string        `yaml:"metrics_textfile"`
	OTLPEndpoint    string        `yaml:"otlp_endpoint"`
	LogEnv          string        `yaml:"log_env"`
	LogLevel        string        `yaml:"log_level"`
}

func Default() Config {
	pc := relevance.DefaultConfig()
	return Config{
		ArxivAPIURL:         defaultArxivAPIURL,
		MaxResults:          100,
		DaysBack:            1,
		Provider:            llm.ProviderAnthropic,
		MaxTokens:           4096,
		Temperature:         llm.DefaultTemperature,
		MaxConcurrent:       pc.MaxConcurrent,
		BatchSize:           pc.ScreeningBatchSize,
		DetailBatchSize:     pc.DetailBatchSize,
		MinRelevance:        string(pc.MinRelevance),
		ScreeningMaxTokens:  pc.ScreeningMaxTokens,
		DetailMaxTokens:     pc.DetailMaxTokens,
		AbstractLimit:       pc.AbstractLimit,
		AuthorLimit:         pc.AuthorLimit,
		Locale:              pc.Locale,
		TranslationLanguage: pc.TranslationLanguage,
		RequestTimeout:      pc.RequestTimeout,
		MaxAttempts:         1,
		OutputDir:           "reports",
		ReportFormats:       []string{report.FormatMarkdown, report.FormatJSON},
		PDFPaper:            report.PaperA4,
		PDFTimeout:          60 * time.Second,
		HistoryDB:           "arxiv-agent.db",
		LogEnv:              "local",
		LogLevel:            "info",
	}
}

// Load reads .env (when present), the YAML file at path and the environment,
// in that order of increasing precedence. A missing file is an error unless
// optional is set.
func Load(path string, optional bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && optional:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.APIKey == "" {
		keys := []string{anthropicTokenEnv, anthropicKeyEnv, apiKeyEnv}
		if strings.EqualFold(c.Provider, llm.ProviderOpenAI) {
			keys = []string{openAIKeyEnv, apiKeyEnv}
		}
		c.APIKey = firstEnv(keys...)
	}
	if c.APIBaseURL == "" {
		if strings.EqualFold(c.Provider, llm.ProviderOpenAI) {
			c.APIBaseURL = firstEnv(openAIBaseEnv)
		} else {
			c.APIBaseURL = firstEnv(anthropicBaseEnv)
		}
	}
	if v := firstEnv(modelEnv); v != "" {
		c.Model = v
	}
	if v := firstEnv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
	if v := firstEnv(historyDBEnv); v != "" {
		c.HistoryDB = v
	}
	if c.OTLPEndpoint == "" {
		c.OTLPEndpoint = firstEnv(otlpEndpointEnv)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate fails fast on settings that would break a run. The credential is
// only required when analysis is enabled.
func (c Config) Validate(analysis bool) error {
	if c.ResearchPrompt == "" && len(nonEmpty(c.ResearchInterests)) == 0 {
		return invalid("research_interests or research_prompt is required")
	}
	if c.DaysBack < 1 {
		return invalid("days_back must be at least 1, got %d", c.DaysBack)
	}
	if c.MaxResults < 1 {
		return invalid("max_results must be at least 1, got %d", c.MaxResults)
	}
	for _, f := range c.ReportFormats {
		switch strings.ToLower(f) {
		case report.FormatMarkdown, report.FormatHTML, report.FormatPDF, report.FormatJSON:
		default:
			return invalid("unknown report format %q", f)
		}
	}
	if !report.ValidPaper(c.PDFPaper) {
		return invalid("pdf_paper must be a4 or letter, got %q", c.PDFPaper)
	}
	if c.PDFTimeout < 0 {
		return invalid("pdf_timeout must not be negative, got %v", c.PDFTimeout)
	}
	if !analysis {
		return nil
	}
	switch strings.ToLower(c.Provider) {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
	default:
		return invalid("provider must be anthropic or openai, got %q", c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return invalid("api key not configured (api_key, %s or %s)", anthropicKeyEnv, openAIKeyEnv)
	}
	if c.MaxAttempts < 1 {
		return invalid("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return invalid("temperature must be within [0, 2], got %v", c.Temperature)
	}
	pc, err := c.Pipeline()
	if err != nil {
		return err
	}
	return pc.Validate()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{relevance.ErrInvalidConfig}, args...)...)
}

// Pipeline derives the relevance settings. max_tokens caps both stages.
func (c Config) Pipeline() (relevance.Config, error) {
	level, err := content.ParseThreshold(c.MinRelevance)
	if err != nil {
		return relevance.Config{}, fmt.Errorf("%w: %v", relevance.ErrInvalidConfig, err)
	}
	screening, detail := c.ScreeningMaxTokens, c.DetailMaxTokens
	if c.MaxTokens > 0 {
		screening, detail = min(screening, c.MaxTokens), min(detail, c.MaxTokens)
	}
	return relevance.Config{
		MaxConcurrent:       c.MaxConcurrent,
		ScreeningBatchSize:  c.BatchSize,
		DetailBatchSize:     c.DetailBatchSize,
		MinRelevance:        level,
		ScreeningMaxTokens:  screening,
		DetailMaxTokens:     detail,
		AbstractLimit:       c.AbstractLimit,
		AuthorLimit:         c.AuthorLimit,
		RequestTimeout:      c.RequestTimeout,
		Locale:              c.Locale,
		TranslationLanguage: c.TranslationLanguage,
	}, nil
}

func (c Config) LLM() llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		APIKey:      c.APIKey,
		BaseURL:     c.APIBaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
	}
}

func (c Config) PDF() report.PDFOptions {
	return report.PDFOptions{Timeout: c.PDFTimeout, Paper: c.PDFPaper, Landscape: c.PDFLandscape}
}

func (c Config) Interests() relevance.Interests {
	return relevance.Interests{Prompt: strings.TrimSpace(c.ResearchPrompt), Keywords: nonEmpty(c.ResearchInterests)}
}

func (c Config) WantsFormat(format string) bool {
	for _, f := range c.ReportFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
