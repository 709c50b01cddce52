package bolt

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/breaktime/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketState = "budget_state"

	// keyState is the single record inside bucketState.
	keyState = "state"
)

// Store implements the storage.Store interface using bbolt. Bolt serializes
// writers, so the merge discipline falls out of running each mutation inside
// one Update transaction.
type Store struct {
	db         *bbolt.DB
	stateStore *stateStore
}

// Open opens (or creates) the bolt database at path.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	// Create buckets up front
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketState))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{
		db:         db,
		stateStore: &stateStore{db: db},
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// State returns the StateStore implementation.
func (s *Store) State() storage.StateStore {
	return s.stateStore
}
