package retriever

import (
	"fmt"
	"sort"

	"legalrag/internal/domain"
)

// Rank scores every record against the query and returns the k most similar,
// highest first. Records with equal similarity keep their store order.
func Rank(query []float32, records []domain.VectorRecord, k int) ([]domain.RankedResult, error) {
	scored := make([]domain.RankedResult, 0, len(records))
	for i, rec := range records {
		sim, err := CosineSimilarity(query, rec.Vector)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.DocumentName, err)
		}
		scored = append(scored, domain.RankedResult{
			Record:     rec,
			Similarity: sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k < 0 {
		k = 0
	}
	if k > len(scored) {
		k = len(scored)
	}

	return scored[:k], nil
}
