// Package openai implements llm.Provider with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Jerrylingj/MemoLite/pkg/llm"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Client is an OpenAI chat client implementing llm.Provider.
// Any OpenAI-compatible endpoint can be used through Config.BaseURL.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI LLM client.
// APIKey: API key (required)
// Model: chat model name, defaults to DefaultModel
// BaseURL: API base URL, defaults to OpenAI official address
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai llm: api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// GenerateWithMessages sends the conversation and returns the first choice.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai llm: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai llm: no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the OpenAI SDK client holds no resources.
func (c *Client) Close() error {
	return nil
}
