package cli

import (
	"fmt"
	"os"

	"legalrag/config"
	"legalrag/internal/adapter/cache"
	"legalrag/internal/adapter/chunker"
	"legalrag/internal/adapter/embedding"
	"legalrag/internal/adapter/llm"
	"legalrag/internal/adapter/memstore"
	"legalrag/internal/adapter/store"
	"legalrag/internal/port"
	"legalrag/internal/usecase"
)

// newEmbedder builds the configured embedder, wrapped in a cache when
// embedding.cache_size is positive.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	opts := embedding.Options{
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	}

	var (
		embedder port.Embedder
		err      error
	)
	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts)
	case "deepseek":
		embedder, err = embedding.NewDeepSeekEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts)
	case "jina":
		embedder, err = embedding.NewJinaEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts)
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(cfg.Embedding.Model, opts)
	case "compatible":
		embedder, err = embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, opts)
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if cfg.Embedding.CacheSize > 0 {
		embedder = cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL))
	}
	return embedder, nil
}

// newGenerator builds the configured generator with the given token limit.
func newGenerator(cfg *config.Config, maxTokens int) (port.Generator, error) {
	if cfg.Generation.Provider == "mock" {
		return llm.NewMockGenerator(), nil
	}

	gen, err := llm.NewOpenAIGenerator(llm.Options{
		Provider:    cfg.Generation.Provider,
		BaseURL:     cfg.Generation.BaseURL,
		APIKeyEnv:   cfg.Generation.APIKeyEnv,
		Model:       cfg.Generation.Model,
		MaxTokens:   maxTokens,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return gen, nil
}

func newChunker(cfg *config.Config) (*chunker.CharChunker, error) {
	return chunker.NewCharChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
}

// openMemoryStore returns a fresh in-process store with a no-op closer.
func openMemoryStore() (port.VectorStore, func() error) {
	return memstore.NewVectorStore(), func() error { return nil }
}

// openBoltStore opens the persistent store and checks that its records were
// embedded with the same model. With create unset, a missing store is an
// error.
func openBoltStore(cfg *config.Config, create bool) (*store.BoltVectorStore, error) {
	path := cfg.StorePath(GetRootDir())

	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("no store found at %s. Run 'legalrag ingest' first", path)
		}
	} else if err := config.EnsureStoreDir(path); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	st, err := store.OpenBoltVectorStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// checkStore refuses to mix vectors from different embedding models.
func checkStore(st *store.BoltVectorStore, embedder port.Embedder) error {
	result, err := st.CheckCompatibility(embedder.ModelName(), embedder.Dimension())
	if err != nil {
		return err
	}
	if result.NeedsRebuild {
		return fmt.Errorf("store is incompatible (%s). Run 'legalrag ingest --rebuild'", result.Reason)
	}
	return nil
}

func newIngestUseCase(cfg *config.Config, embedder port.Embedder, st port.VectorStore) (*usecase.IngestUseCase, error) {
	ch, err := newChunker(cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewIngestUseCase(ch, embedder, st,
		usecase.WithConcurrency(cfg.Embedding.Concurrency),
		usecase.WithEmbedTimeout(cfg.Embedding.Timeout),
		usecase.WithIngestLogger(logger),
	), nil
}

func newRetrieveUseCase(cfg *config.Config, embedder port.Embedder, generator port.Generator, st port.VectorStore) *usecase.RetrieveUseCase {
	return usecase.NewRetrieveUseCase(embedder, generator, st,
		usecase.WithTopK(cfg.Retrieve.TopK),
		usecase.WithTimeouts(cfg.Embedding.Timeout, cfg.Generation.Timeout),
		usecase.WithRetrieveLogger(logger),
	)
}
