package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"legalrag/internal/domain"
)

// letterEmbedder embeds text as the counts of 'a', 'b' and 'c'.
type letterEmbedder struct {
	calls  atomic.Int32
	failOn func(text string) bool
	block  bool
}

func (e *letterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.failOn != nil && e.failOn(text) {
		return nil, errors.New("service unavailable")
	}
	v := make([]float32, 3)
	for _, r := range text {
		switch r {
		case 'a':
			v[0]++
		case 'b':
			v[1]++
		case 'c':
			v[2]++
		}
	}
	return v, nil
}

func (e *letterEmbedder) Dimension() int    { return 3 }
func (e *letterEmbedder) ModelName() string { return "letters" }

type recordingGenerator struct {
	mu           sync.Mutex
	calls        int
	instructions string
	prompt       string
	answer       string
	err          error
}

func (g *recordingGenerator) Generate(ctx context.Context, instructions, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.instructions = instructions
	g.prompt = prompt
	return g.answer, g.err
}

func (g *recordingGenerator) ModelName() string { return "recording" }

// sliceStore is a minimal in-memory store for pipeline tests.
type sliceStore struct {
	mu      sync.Mutex
	records []domain.VectorRecord
	appends int
	err     error
}

func (s *sliceStore) Append(records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.appends++
	s.records = append(s.records, records...)
	return nil
}

func (s *sliceStore) All() ([]domain.VectorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[:len(s.records):len(s.records)], nil
}

func (s *sliceStore) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// leaseText is 2500 characters: 900 'a', 900 'b' and 700 'c'.
func leaseText() string {
	return strings.Repeat("a", 900) + strings.Repeat("b", 900) + strings.Repeat("c", 700)
}
