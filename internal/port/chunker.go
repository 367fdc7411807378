package port

import "legalrag/internal/domain"

type Chunker interface {
	Chunk(text string) ([]domain.Chunk, error)
}
