package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"legalrag/internal/domain"
)

func openTestStore(t *testing.T, path string) *BoltVectorStore {
	t.Helper()
	s, err := OpenBoltVectorStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBoltVectorStoreAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")

	s := openTestStore(t, path)
	first := []domain.VectorRecord{
		{ID: "r1", DocumentName: "lease.txt", ChunkText: "rent is due monthly", Vector: []float32{1, 0}},
		{ID: "r2", DocumentName: "lease.txt", ChunkText: "tenant pays utilities", Vector: []float32{0, 1}},
	}
	if err := s.Append(first); err != nil {
		t.Fatal(err)
	}
	if err := s.Append([]domain.VectorRecord{
		{ID: "r3", DocumentName: "nda.pdf", ChunkText: "confidential information", Vector: []float32{1, 1}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s = openTestStore(t, path)
	defer s.Close()

	size, err := s.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != 3 {
		t.Fatalf("expected 3 records after reload, got %d", size)
	}

	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"r1", "r2", "r3"}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("record %d: expected %s, got %s", i, id, all[i].ID)
		}
	}
	if all[2].DocumentName != "nda.pdf" || all[2].ChunkText != "confidential information" {
		t.Errorf("record fields not preserved: %+v", all[2])
	}
	if len(all[1].Vector) != 2 || all[1].Vector[1] != 1 {
		t.Errorf("vector not preserved: %v", all[1].Vector)
	}

	// Appends after a reload continue the insertion order.
	if err := s.Append([]domain.VectorRecord{
		{ID: "r4", DocumentName: "lease.txt", ChunkText: "late fee", Vector: []float32{0.5, 0.5}},
	}); err != nil {
		t.Fatal(err)
	}
	all, _ = s.All()
	if all[3].ID != "r4" {
		t.Errorf("expected r4 last, got %s", all[3].ID)
	}
}

func TestBoltVectorStoreCompatibility(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "vectors.db"))
	defer s.Close()

	result, err := s.CheckCompatibility("text-embedding-3-small", 1536)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsInit {
		t.Error("expected fresh store to need schema init")
	}

	if err := s.Migrate("text-embedding-3-small", 1536); err != nil {
		t.Fatal(err)
	}

	info, err := s.GetSchemaInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != CurrentSchemaVersion || info.EmbeddingModel != "text-embedding-3-small" || info.Dimension != 1536 {
		t.Errorf("unexpected schema info: %+v", info)
	}

	// An empty store accepts any model.
	result, err = s.CheckCompatibility("nomic-embed-text", 768)
	if err != nil {
		t.Fatal(err)
	}
	if result.NeedsRebuild {
		t.Errorf("empty store should not need rebuild: %s", result.Reason)
	}

	if err := s.Append([]domain.VectorRecord{{ID: "r1", ChunkText: "x", Vector: make([]float32, 1536)}}); err != nil {
		t.Fatal(err)
	}

	result, err = s.CheckCompatibility("nomic-embed-text", 768)
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsRebuild {
		t.Error("expected rebuild after embedding model change")
	}

	result, err = s.CheckCompatibility("text-embedding-3-small", 1536)
	if err != nil {
		t.Fatal(err)
	}
	if result.NeedsRebuild || result.NeedsInit {
		t.Errorf("expected compatible store, got %+v", result)
	}
}

func TestBoltVectorStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s := openTestStore(t, path)

	if err := s.Migrate("mock", 4); err != nil {
		t.Fatal(err)
	}
	if err := s.Append([]domain.VectorRecord{{ID: "r1", ChunkText: "x", Vector: []float32{1, 2, 3, 4}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}

	if size, _ := s.Size(); size != 0 {
		t.Errorf("expected empty store after clear, got %d", size)
	}
	s.Close()

	s = openTestStore(t, path)
	defer s.Close()
	if size, _ := s.Size(); size != 0 {
		t.Errorf("expected empty store after reopen, got %d", size)
	}
	info, _ := s.GetSchemaInfo()
	if info.EmbeddingModel != "mock" {
		t.Errorf("expected schema info to survive clear, got %+v", info)
	}
}

func TestBoltVectorStoreReadDuringCommit(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "vectors.db"))
	defer s.Close()

	if err := s.Append([]domain.VectorRecord{
		{ID: "r1", DocumentName: "lease.txt", ChunkText: "rent", Vector: []float32{1}},
	}); err != nil {
		t.Fatal(err)
	}

	// Hold the writer lock as an in-flight commit would.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	done := make(chan int, 1)
	go func() {
		records, _ := s.All()
		done <- len(records)
	}()

	select {
	case n := <-done:
		if n != 1 {
			t.Errorf("expected 1 record, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("All blocked behind a writer")
	}
}

func TestBoltVectorStoreConcurrentAppend(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "vectors.db"))
	defer s.Close()

	const writers, perBatch = 4, 5
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]domain.VectorRecord, perBatch)
			for i := range batch {
				batch[i] = domain.VectorRecord{
					ID:           fmt.Sprintf("w%d-%d", w, i),
					DocumentName: fmt.Sprintf("doc-%d", w),
					ChunkText:    "clause",
					Vector:       []float32{float32(i)},
				}
			}
			if err := s.Append(batch); err != nil {
				t.Error(err)
			}
		}(w)
	}
	wg.Wait()

	records, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != writers*perBatch {
		t.Fatalf("expected %d records, got %d", writers*perBatch, len(records))
	}
	// Batches are not interleaved.
	for i := 0; i < len(records); i += perBatch {
		doc := records[i].DocumentName
		for j := i; j < i+perBatch; j++ {
			if records[j].DocumentName != doc {
				t.Fatalf("batch starting at %d interleaved with %s", i, records[j].DocumentName)
			}
		}
	}
}
