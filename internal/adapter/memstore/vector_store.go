package memstore

import (
	"sync"

	"legalrag/internal/domain"
)

// VectorStore keeps vector records in process memory. It starts empty, only
// grows, and is lost when the process exits.
type VectorStore struct {
	mu      sync.RWMutex
	records []domain.VectorRecord
}

func NewVectorStore() *VectorStore {
	return &VectorStore{
		records: make([]domain.VectorRecord, 0),
	}
}

// Append adds records in order. Duplicate content is accepted.
func (s *VectorStore) Append(records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// All returns the records stored so far. The slice is capped at its length,
// so appends by the caller never write into the store's backing array.
func (s *VectorStore) All() ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	return s.records[:n:n], nil
}

func (s *VectorStore) Size() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
