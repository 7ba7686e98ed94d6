// Package boltstore is a bbolt-backed LeafStore and ContentStore,
// the reference persistent backend for a Dag too large, or too
// long-lived, to keep entirely in memory between transmission packets.
// Bucket and key conventions are adapted from the teacher's
// lib/stores/bbolt store: one top-level bucket per concern, keyed by
// the content-addressed identifier rather than a sequential ID.
package boltstore

import (
	"fmt"

	"github.com/HORNET-Storage/scionic-merkletree/dag"
	bolt "go.etcd.io/bbolt"
)

var (
	leavesBucket  = []byte("leaves")
	contentBucket = []byte("content")
)

// Store is a bbolt database opened for leaf and content storage. A
// single file backs both buckets, since a Dag's structural leaves and
// (when WithSeparateContent is used) its content are always opened and
// closed together in practice.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database at path with the
// buckets this store needs.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt store at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(leavesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(contentBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutLeaf stores leaf's canonical CBOR encoding under its own CID.
func (s *Store) PutLeaf(cidStr string, leaf *dag.DagLeaf) error {
	data, err := leaf.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("encoding leaf %s: %w", cidStr, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(leavesBucket).Put([]byte(cidStr), data)
	})
}

// GetLeaf retrieves and decodes the leaf stored under cidStr.
func (s *Store) GetLeaf(cidStr string) (*dag.DagLeaf, error) {
	var leaf dag.DagLeaf
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(leavesBucket).Get([]byte(cidStr))
		if data == nil {
			return fmt.Errorf("leaf %s not found", cidStr)
		}
		return leaf.UnmarshalCBOR(data)
	})
	if err != nil {
		return nil, err
	}
	return &leaf, nil
}

// HasLeaf reports whether cidStr has a stored leaf.
func (s *Store) HasLeaf(cidStr string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(leavesBucket).Get([]byte(cidStr)) != nil
		return nil
	})
	return found, err
}

// PutContent stores content under its content hash, for leaves built
// with dag.WithSeparateContent.
func (s *Store) PutContent(contentHash []byte, content []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(contentBucket).Put(contentHash, content)
	})
}

// GetContent retrieves content stored under contentHash.
func (s *Store) GetContent(contentHash []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(contentBucket).Get(contentHash)
		if data == nil {
			return fmt.Errorf("content %x not found", contentHash)
		}
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ dag.LeafStore    = (*Store)(nil)
	_ dag.ContentStore = (*Store)(nil)
)
