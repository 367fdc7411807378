package port

import (
	"context"

	"legalrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding for a single text. Every vector returned
	// by one embedder has the same length.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore is an append-only, insertion-ordered collection of records.
type VectorStore interface {
	// Append adds records in the given order. A batch is visible to readers
	// either completely or not at all.
	Append(records []domain.VectorRecord) error

	// All returns a read-only snapshot of every record in insertion order.
	All() ([]domain.VectorRecord, error)

	// Size returns the number of stored records.
	Size() (int, error)
}
