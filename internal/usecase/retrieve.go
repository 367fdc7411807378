package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"legalrag/internal/adapter/retriever"
	"legalrag/internal/domain"
	"legalrag/internal/port"
)

const DefaultTopK = 3

// RetrieveUseCase answers questions from the records in a store.
type RetrieveUseCase struct {
	embedder        port.Embedder
	generator       port.Generator
	store           port.VectorStore
	prompts         *Prompts
	logger          *slog.Logger
	topK            int
	embedTimeout    time.Duration
	generateTimeout time.Duration
}

type RetrieveOption func(*RetrieveUseCase)

// WithTopK sets the number of results used when a caller passes k <= 0.
func WithTopK(k int) RetrieveOption {
	return func(u *RetrieveUseCase) {
		if k > 0 {
			u.topK = k
		}
	}
}

func WithRetrieveLogger(l *slog.Logger) RetrieveOption {
	return func(u *RetrieveUseCase) { u.logger = l }
}

// WithTimeouts sets per-call deadlines for the query embedding and the
// answer generation. Zero disables a deadline.
func WithTimeouts(embed, generate time.Duration) RetrieveOption {
	return func(u *RetrieveUseCase) {
		u.embedTimeout = embed
		u.generateTimeout = generate
	}
}

func WithPrompts(p *Prompts) RetrieveOption {
	return func(u *RetrieveUseCase) { u.prompts = p }
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	embedder port.Embedder,
	generator port.Generator,
	store port.VectorStore,
	opts ...RetrieveOption,
) *RetrieveUseCase {
	u := &RetrieveUseCase{
		embedder:  embedder,
		generator: generator,
		store:     store,
		logger:    slog.Default(),
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.prompts == nil {
		u.prompts = MustLoadPrompts()
	}
	return u
}

// Search embeds the query and ranks every stored record against it.
func (u *RetrieveUseCase) Search(ctx context.Context, query string, k int) ([]domain.RankedResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	records, err := u.store.All()
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	if k <= 0 {
		k = u.topK
	}

	queryVec, err := u.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := retriever.Rank(queryVec, records, k)
	if err != nil {
		return nil, fmt.Errorf("failed to rank records: %w", err)
	}

	u.logger.Debug("records ranked", "records", len(records), "k", k, "results", len(results))
	return results, nil
}

// Answer retrieves the k most similar records and asks the generator for an
// answer grounded in them. Either an answer with its sources or an error is
// returned, never a partial answer.
func (u *RetrieveUseCase) Answer(ctx context.Context, query string, k int) (*domain.Answer, error) {
	start := time.Now()

	results, err := u.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	prompt, err := u.prompts.RenderAnswer(BuildContext(results), query)
	if err != nil {
		return nil, err
	}

	text, err := u.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	u.logger.Info("question answered",
		"sources", len(results),
		"model", u.generator.ModelName(),
		"duration", time.Since(start),
	)

	return &domain.Answer{
		Query:   query,
		Text:    text,
		Sources: results,
	}, nil
}

func (u *RetrieveUseCase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if u.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.embedTimeout)
		defer cancel()
	}

	v, err := u.embedder.Embed(ctx, query)
	if err == nil && len(v) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		return nil, &domain.EmbeddingError{Stage: domain.StageQuery, ChunkIndex: -1, Err: err}
	}
	return v, nil
}

func (u *RetrieveUseCase) generate(ctx context.Context, prompt string) (string, error) {
	if u.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.generateTimeout)
		defer cancel()
	}

	text, err := u.generator.Generate(ctx, u.prompts.AnswerInstructions(), prompt)
	if err != nil {
		return "", &domain.GenerationError{Stage: domain.StageAnswer, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.GenerationError{Stage: domain.StageAnswer, Err: errors.New("empty response")}
	}
	return text, nil
}
