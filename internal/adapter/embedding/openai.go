package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	jinaBaseURL     = "https://api.jina.ai/v1"
	ollamaBaseURL   = "http://localhost:11434/v1"
)

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// Options tweaks an embedder beyond the provider preset.
type Options struct {
	BaseURL   string
	Dimension int
	Timeout   time.Duration
}

func NewOpenAIEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, withBaseURL(opts, openAIBaseURL))
}

func NewDeepSeekEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, withBaseURL(opts, deepSeekBaseURL))
}

func NewJinaEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, withBaseURL(opts, jinaBaseURL))
}

// NewOllamaEmbedder needs no API key.
func NewOllamaEmbedder(model string, opts Options) (*OpenAIEmbedder, error) {
	opts = withBaseURL(opts, ollamaBaseURL)
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	return newEmbedder("ollama", model, opts), nil
}

func NewOpenAICompatibleEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return newEmbedder(apiKey, model, opts), nil
}

func newEmbedder(apiKey, model string, opts Options) *OpenAIEmbedder {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = opts.BaseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = modelDimension(model)
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}
}

func withBaseURL(opts Options, fallback string) Options {
	if opts.BaseURL == "" {
		opts.BaseURL = fallback
	}
	return opts
}

func modelDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "jina-embeddings-v3", "mxbai-embed-large":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "nomic-embed-text":
		return 768
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
