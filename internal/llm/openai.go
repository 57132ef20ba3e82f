package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the slice of *openai.Client the caller needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICaller talks to any OpenAI-compatible chat completions endpoint.
type OpenAICaller struct {
	chat        ChatCompleter
	model       string
	temperature float64
}

type OpenAIClientCreator func(apiKey, baseURL string) ChatCompleter

func defaultOpenAICreator(apiKey, baseURL string) ChatCompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

var newOpenAIClient OpenAIClientCreator = defaultOpenAICreator

func (o *OpenAICaller) ModelName() string { return o.model }

func (o *OpenAICaller) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := o.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: float32(o.temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
