package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider presets for OpenAI-compatible chat endpoints.
var providers = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

// Options configures an OpenAIGenerator.
type Options struct {
	Provider    string
	BaseURL     string
	APIKeyEnv   string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// OpenAIGenerator generates answers through an OpenAI-compatible chat
// completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIGenerator(opts Options) (*OpenAIGenerator, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		preset, ok := providers[opts.Provider]
		if !ok {
			return nil, fmt.Errorf("unsupported generation provider: %s", opts.Provider)
		}
		baseURL = preset
	}

	apiKey := "ollama"
	if opts.Provider != "ollama" {
		apiKey = os.Getenv(opts.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", opts.APIKeyEnv)
		}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, instructions, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}
