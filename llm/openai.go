package llm

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI compatible chat completion backend.
type OpenAIConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint for compatible servers.
	BaseURL string

	Model     string
	MaxTokens int

	HTTPClient *http.Client
}

// OpenAICompleter calls the chat completions endpoint.
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAICompleter creates a completer from cfg.
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	return NewOpenAICompleterWithClient(openai.NewClientWithConfig(clientConfig), cfg.Model, cfg.MaxTokens)
}

// NewOpenAICompleterWithClient wraps an existing client.
func NewOpenAICompleterWithClient(client *openai.Client, model string, maxTokens int) *OpenAICompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &OpenAICompleter{client: client, model: model, maxTokens: maxTokens}
}

// Name returns "openai:<model>".
func (c *OpenAICompleter) Name() string { return "openai:" + c.model }

// Complete sends prompt as a single user message.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
