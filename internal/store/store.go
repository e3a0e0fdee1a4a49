// Package store persists evicted memory regions as keyed blobs in a
// single-file bbolt database. It is the role BerkeleyDB's heap store plays
// in classic swap-to-database allocators: Put hands back an opaque key,
// PutAt overwrites in place, Get returns the bytes.
//
// The file is owned exclusively by one process and is recreated on every
// Open; surviving state across runs is a non-goal.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound indicates a Get for a key that has no entry.
	ErrNotFound = errors.New("store: key not found")
)

var bucketRegions = []byte("regions")

// Key identifies one stored blob. The zero Key is never issued and acts
// as the invalid handle.
type Key uint64

// Options tunes the underlying database.
type Options struct {
	// PageSize is the database page size. Zero means the bbolt default.
	PageSize int
	// CacheSize pre-sizes the database's memory map, in bytes.
	CacheSize int
}

// Store is an open blob store.
type Store struct {
	db *bolt.DB
}

// Open creates the store file at path, truncating any previous one.
// The database runs with NoSync: neither individual puts nor Close force
// a sync.
func Open(path string, opts Options) (*Store, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("store: remove stale %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:         time.Second,
		PageSize:        opts.PageSize,
		InitialMmapSize: opts.CacheSize,
		NoSync:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists(bucketRegions)
		return berr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores data under a fresh key and returns it.
func (s *Store) Put(data []byte) (Key, error) {
	var k Key
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRegions)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		k = Key(seq)
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("store: put: %w", err)
	}
	return k, nil
}

// PutAt overwrites the blob stored under key.
func (s *Store) PutAt(key Key, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegions).Put(itob(uint64(key)), data)
	})
	if err != nil {
		return fmt.Errorf("store: put at %d: %w", key, err)
	}
	return nil
}

// Get returns a copy of the blob stored under key.
func (s *Store) Get(key Key) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRegions).Get(itob(uint64(key)))
		if v == nil {
			return ErrNotFound
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get %d: %w", key, err)
	}
	return out, nil
}

// Del removes the blob stored under key. Deleting an absent key is a
// no-op.
func (s *Store) Del(key Key) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegions).Delete(itob(uint64(key)))
	})
	if err != nil {
		return fmt.Errorf("store: del %d: %w", key, err)
	}
	return nil
}

// Close closes the database without a forced sync.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// itob encodes a key as a big-endian 8-byte bucket key, keeping entries
// byte-ordered.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
