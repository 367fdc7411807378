package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration reports chunk settings outside size > overlap >= 0.
	ErrInvalidConfiguration = errors.New("invalid chunk configuration")

	// ErrDimensionMismatch reports vectors of unequal length reaching the ranker.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyCorpus reports a retrieval against a store with no records.
	ErrEmptyCorpus = errors.New("no documents ingested")

	ErrEmptyQuery = errors.New("query is empty")

	ErrEmbeddingFailure  = errors.New("embedding failed")
	ErrGenerationFailure = errors.New("generation failed")

	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("no text extracted from document")
	ErrMalformedAnalysis = errors.New("malformed analysis response")
)

const (
	StageIngest  = "ingest"
	StageQuery   = "query"
	StageAnswer  = "answer"
	StageAnalyze = "analyze"
)

// EmbeddingError is returned when the embedding service fails for one chunk
// or for a query. ChunkIndex is -1 when the failing text was not a chunk.
type EmbeddingError struct {
	Stage      string
	ChunkIndex int
	Err        error
}

func (e *EmbeddingError) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("%s: embedding chunk %d: %v", e.Stage, e.ChunkIndex, e.Err)
	}
	return fmt.Sprintf("%s: embedding: %v", e.Stage, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbeddingFailure }

// GenerationError is returned when the generative service fails or answers
// with nothing.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailure }
