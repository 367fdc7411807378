package embedding

import (
	"context"
	"hash/fnv"

	"legalrag/internal/adapter/analyzer"
)

// MockEmbedder produces deterministic bag-of-words vectors without calling
// any service. Texts sharing words get similar vectors.
type MockEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimension)
	for _, token := range e.tokenizer.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32()%uint32(e.dimension))]++
	}
	return vec, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
