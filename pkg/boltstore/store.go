// Package boltstore is a bbolt-backed users.Store for installs that want
// crash-safe user data instead of the flat JSON file.
package boltstore

import (
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/cgif-games/octothorpe/pkg/users"
)

var bucketUsers = []byte("users")

// Store wraps a bbolt database holding one record per user id.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures the users
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUsers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create bucket: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Load reads every persisted user record. A fresh database yields an
// empty registry.
func (s *Store) Load() (map[string]users.Record, error) {
	records := make(map[string]users.Record)
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var rec users.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("boltstore: decode user %s: %w", k, err)
			}
			records[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Save rewrites the full registry in a single transaction. Stale keys are
// dropped so the bucket mirrors the in-memory registry exactly.
func (s *Store) Save(records map[string]users.Record) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketUsers); err != nil {
			return fmt.Errorf("boltstore: clear bucket: %w", err)
		}
		b, err := tx.CreateBucket(bucketUsers)
		if err != nil {
			return fmt.Errorf("boltstore: recreate bucket: %w", err)
		}
		for id, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("boltstore: encode user %s: %w", id, err)
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the database file.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

var _ users.Store = (*Store)(nil)
