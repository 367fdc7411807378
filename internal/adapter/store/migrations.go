package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"legalrag/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion  = []byte("schema_version")
	keyEmbeddingModel = []byte("embedding_model")
	keyDimension      = []byte("dimension")
)

// SchemaInfo records which embedding model produced the stored vectors.
type SchemaInfo struct {
	Version        int    `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltVectorStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		if data := b.Get(keyDimension); data != nil {
			if err := json.Unmarshal(data, &info.Dimension); err != nil {
				return fmt.Errorf("corrupt dimension: %w", err)
			}
		}
		info.EmbeddingModel = string(b.Get(keyEmbeddingModel))
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltVectorStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}

		dimData, err := json.Marshal(info.Dimension)
		if err != nil {
			return err
		}
		if err := b.Put(keyDimension, dimData); err != nil {
			return err
		}

		return b.Put(keyEmbeddingModel, []byte(info.EmbeddingModel))
	})
}

// MigrationResult describes the result of a compatibility check.
type MigrationResult struct {
	NeedsInit    bool
	NeedsRebuild bool
	OldVersion   int
	NewVersion   int
	Reason       string
}

// CheckCompatibility reports whether vectors from the given embedding model
// can be appended to the existing records.
func (s *BoltVectorStore) CheckCompatibility(model string, dimension int) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsInit = true
		result.Reason = "initializing schema version"
		return result, nil
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	size, _ := s.Size()
	if size == 0 {
		return result, nil
	}

	if info.EmbeddingModel != "" && info.EmbeddingModel != model {
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding model changed from %s to %s", info.EmbeddingModel, model)
	} else if info.Dimension != 0 && info.Dimension != dimension {
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding dimension changed from %d to %d", info.Dimension, dimension)
	}

	return result, nil
}

// Migrate records the schema version and embedding model.
func (s *BoltVectorStore) Migrate(model string, dimension int) error {
	return s.SetSchemaInfo(&SchemaInfo{
		Version:        CurrentSchemaVersion,
		EmbeddingModel: model,
		Dimension:      dimension,
	})
}

// Clear removes every record (for rebuild). Schema metadata is kept.
func (s *BoltVectorStore) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketRecords); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketRecords)
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = make([]domain.VectorRecord, 0)
	s.mu.Unlock()
	return nil
}
