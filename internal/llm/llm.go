package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultTemperature    = 0.7
)

var (
	ErrMissingCredential = errors.New("llm api key not configured")
	ErrEmptyResponse     = errors.New("llm returned no text content")
)

// CompletionClient turns one prompt into one response text. Implementations
// perform a single network call; retries are layered on with WithRetry.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	ModelName() string
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// New builds the CompletionClient for cfg.Provider.
func New(cfg Config) (CompletionClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAnthropic:
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			model = DefaultAnthropicModel
		}
		return &AnthropicCaller{
			messages:    newAnthropicClient(apiKey, strings.TrimSpace(cfg.BaseURL)),
			model:       model,
			temperature: cfg.Temperature,
		}, nil
	case ProviderOpenAI:
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			model = DefaultOpenAIModel
		}
		return &OpenAICaller{
			chat:        newOpenAIClient(apiKey, strings.TrimSpace(cfg.BaseURL)),
			model:       model,
			temperature: cfg.Temperature,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
