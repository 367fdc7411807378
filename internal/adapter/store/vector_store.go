package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"legalrag/internal/domain"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
)

// BoltVectorStore implements VectorStore on top of BoltDB. Records are keyed
// by the bucket sequence so a cursor scan yields insertion order. All records
// are also held in memory for ranking.
type BoltVectorStore struct {
	db *bbolt.DB

	// writeMu serializes writers across the disk commit; mu guards only the
	// in-memory view so readers are not blocked by an fsync.
	writeMu sync.Mutex
	mu      sync.RWMutex
	records []domain.VectorRecord
}

type storedRecord struct {
	ID           string    `json:"id"`
	DocumentName string    `json:"doc"`
	ChunkText    string    `json:"text"`
	Vector       []float32 `json:"v"`
}

// OpenBoltVectorStore opens (or creates) the database file at path.
func OpenBoltVectorStore(path string) (*BoltVectorStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	s, err := NewBoltVectorStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBoltVectorStore creates the store buckets in db and loads existing
// records into memory.
func NewBoltVectorStore(db *bbolt.DB) (*BoltVectorStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRecords, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := &BoltVectorStore{
		db:      db,
		records: make([]domain.VectorRecord, 0),
	}

	if err := s.loadRecords(); err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	return s, nil
}

func (s *BoltVectorStore) DB() *bbolt.DB {
	return s.db
}

// loadRecords reads all records from BoltDB in key order.
func (s *BoltVectorStore) loadRecords() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		return b.ForEach(func(k, v []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("record %d: %w", btoi(k), err)
			}
			s.records = append(s.records, stored.toRecord())
			return nil
		})
	})
}

// Append writes the batch in a single transaction. If the transaction fails,
// neither the database nor the in-memory view changes.
func (s *BoltVectorStore) Append(records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return fmt.Errorf("records bucket not found")
		}

		for _, rec := range records {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(storedRecord{
				ID:           rec.ID,
				DocumentName: rec.DocumentName,
				ChunkText:    rec.ChunkText,
				Vector:       rec.Vector,
			})
			if err != nil {
				return err
			}
			if err := b.Put(itob(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append records: %w", err)
	}

	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
	return nil
}

// All returns the records in insertion order.
func (s *BoltVectorStore) All() ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	return s.records[:n:n], nil
}

// Size returns the number of records in the store.
func (s *BoltVectorStore) Size() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

func (r storedRecord) toRecord() domain.VectorRecord {
	return domain.VectorRecord{
		ID:           r.ID,
		DocumentName: r.DocumentName,
		ChunkText:    r.ChunkText,
		Vector:       r.Vector,
	}
}

// itob encodes a sequence number big-endian so keys sort numerically.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
