package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"legalrag/internal/domain"
	"legalrag/internal/port"
)

// ProgressFunc reports how many of total chunks have been embedded.
type ProgressFunc func(done, total int)

// IngestUseCase chunks a document, embeds every chunk and appends the
// resulting records to the store in chunk order.
type IngestUseCase struct {
	chunker     port.Chunker
	embedder    port.Embedder
	store       port.VectorStore
	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
	newID       func() string
}

type IngestOption func(*IngestUseCase)

// WithConcurrency bounds the number of embedding calls in flight.
// Values below 2 keep embedding sequential.
func WithConcurrency(n int) IngestOption {
	return func(u *IngestUseCase) { u.concurrency = n }
}

// WithEmbedTimeout sets a deadline for each embedding call.
func WithEmbedTimeout(d time.Duration) IngestOption {
	return func(u *IngestUseCase) { u.timeout = d }
}

func WithIngestLogger(l *slog.Logger) IngestOption {
	return func(u *IngestUseCase) { u.logger = l }
}

func WithIDGenerator(f func() string) IngestOption {
	return func(u *IngestUseCase) { u.newID = f }
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
	opts ...IngestOption,
) *IngestUseCase {
	u := &IngestUseCase{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		logger:      slog.Default(),
		concurrency: 1,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Ingest stores a document and returns the number of records appended.
func (u *IngestUseCase) Ingest(ctx context.Context, documentName, fullText string) (int, error) {
	return u.IngestWithProgress(ctx, documentName, fullText, nil)
}

// IngestWithProgress is Ingest with a progress callback invoked after each
// successful embedding. Nothing is appended unless every chunk embeds.
func (u *IngestUseCase) IngestWithProgress(ctx context.Context, documentName, fullText string, progress ProgressFunc) (int, error) {
	start := time.Now()

	chunks, err := u.chunker.Chunk(fullText)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk %s: %w", documentName, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	var vectors [][]float32
	if u.concurrency > 1 && len(chunks) > 1 {
		vectors, err = u.embedParallel(ctx, chunks, progress)
	} else {
		vectors, err = u.embedSequential(ctx, chunks, progress)
	}
	if err != nil {
		u.logger.Warn("ingest aborted", "document", documentName, "chunks", len(chunks), "error", err)
		return 0, err
	}

	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			ID:           u.newID(),
			DocumentName: documentName,
			ChunkText:    c.Text,
			Vector:       vectors[i],
		}
	}

	if err := u.store.Append(records); err != nil {
		return 0, fmt.Errorf("failed to store records for %s: %w", documentName, err)
	}

	u.logger.Info("document ingested",
		"document", documentName,
		"chunks", len(records),
		"model", u.embedder.ModelName(),
		"duration", time.Since(start),
	)

	return len(records), nil
}

func (u *IngestUseCase) embedSequential(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, err := u.embedChunk(ctx, c)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
		if progress != nil {
			progress(i+1, len(chunks))
		}
	}
	return vectors, nil
}

func (u *IngestUseCase) embedParallel(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(chunks))
	sem := make(chan struct{}, u.concurrency)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	for _, c := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(c domain.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			v, err := u.embedChunk(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			vectors[c.Index] = v
			done++
			if progress != nil {
				progress(done, len(chunks))
			}
		}(c)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.EmbeddingError{Stage: domain.StageIngest, ChunkIndex: firstMissing(vectors), Err: err}
	}
	return vectors, nil
}

func (u *IngestUseCase) embedChunk(ctx context.Context, c domain.Chunk) ([]float32, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	v, err := u.embedder.Embed(ctx, c.Text)
	if err == nil && len(v) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		return nil, &domain.EmbeddingError{Stage: domain.StageIngest, ChunkIndex: c.Index, Err: err}
	}
	return v, nil
}

func firstMissing(vectors [][]float32) int {
	for i, v := range vectors {
		if v == nil {
			return i
		}
	}
	return -1
}
