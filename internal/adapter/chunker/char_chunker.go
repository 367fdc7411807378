package chunker

import (
	"fmt"

	"legalrag/internal/domain"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 100
)

// CharChunker splits text into fixed-size character windows that overlap by
// a fixed number of characters.
type CharChunker struct {
	size    int
	overlap int
}

func NewCharChunker(size, overlap int) (*CharChunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &CharChunker{
		size:    size,
		overlap: overlap,
	}, nil
}

// NewDefaultChunker returns a chunker with 1000-character windows and a
// 100-character overlap.
func NewDefaultChunker() *CharChunker {
	return &CharChunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
}

// Validate reports whether size and overlap satisfy size > overlap >= 0.
func Validate(size, overlap int) error {
	if overlap < 0 || size <= overlap {
		return fmt.Errorf("%w: size=%d overlap=%d (need size > overlap >= 0)", domain.ErrInvalidConfiguration, size, overlap)
	}
	return nil
}

func (c *CharChunker) Size() int { return c.size }

func (c *CharChunker) Overlap() int { return c.overlap }

// Chunk splits text into windows of at most size characters. Consecutive
// windows start size-overlap characters apart and the last window ends at the
// end of the text.
func (c *CharChunker) Chunk(text string) ([]domain.Chunk, error) {
	if err := Validate(c.size, c.overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	step := c.size - c.overlap

	chunks := make([]domain.Chunk, 0, Count(n, c.size, c.overlap))
	for offset := 0; offset < n; offset += step {
		end := offset + c.size
		if end > n {
			end = n
		}
		chunks = append(chunks, domain.Chunk{
			Index:  len(chunks),
			Offset: offset,
			Length: end - offset,
			Text:   string(runes[offset:end]),
		})
		if end == n {
			break
		}
	}

	return chunks, nil
}

// Count returns the number of chunks a text of the given character length
// produces: ceil(max(length-overlap, 1) / (size-overlap)), or 0 for empty text.
func Count(length, size, overlap int) int {
	if length <= 0 || size <= overlap || overlap < 0 {
		return 0
	}
	span := length - overlap
	if span < 1 {
		span = 1
	}
	step := size - overlap
	return (span + step - 1) / step
}
