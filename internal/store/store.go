// Package store is the embedded document store behind vetbook.
//
// Each collection is one bolt bucket holding JSON documents keyed by id.
// Unique secondary indexes live in their own buckets, prefixed with "idx.".
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boltdb/bolt"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrIndexTaken   = errors.New("store: index key already taken")
	ErrInvalidKey   = errors.New("store: invalid key")
	ErrClosed       = errors.New("store: closed")
	ErrReadOnlyTx   = errors.New("store: write in read-only transaction")
	errNilOutTarget = errors.New("store: nil output target")
)

const indexPrefix = "idx."

// Store wraps a bolt database file.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidKey)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store open (%s): %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Close the database and release the file lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.Close()
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Update runs fn in a read-write transaction. Returning an error rolls back.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Tx is a store transaction.
type Tx struct {
	btx *bolt.Tx
}

func (tx *Tx) bucket(name string, create bool) (*bolt.Bucket, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidKey)
	}
	b := tx.btx.Bucket([]byte(name))
	if b != nil || !create {
		return b, nil
	}
	if !tx.btx.Writable() {
		return nil, ErrReadOnlyTx
	}
	return tx.btx.CreateBucketIfNotExists([]byte(name))
}

// Get decodes the document id of collection into out.
func Get[T any](tx *Tx, collection, id string, out *T) error {
	if out == nil {
		return errNilOutTarget
	}
	b, err := tx.bucket(collection, false)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	raw := b.Get([]byte(id))
	if raw == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Exists reports whether id is present in collection.
func Exists(tx *Tx, collection, id string) (bool, error) {
	b, err := tx.bucket(collection, false)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	return b.Get([]byte(id)) != nil, nil
}

// Put upserts v as the document id of collection.
func Put(tx *Tx, collection, id string, v any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidKey)
	}
	b, err := tx.bucket(collection, true)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store encode %s/%s: %w", collection, id, err)
	}
	return b.Put([]byte(id), raw)
}

// Delete removes the document id of collection.
func Delete(tx *Tx, collection, id string) error {
	b, err := tx.bucket(collection, false)
	if err != nil {
		return err
	}
	if b == nil || b.Get([]byte(id)) == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if !tx.btx.Writable() {
		return ErrReadOnlyTx
	}
	return b.Delete([]byte(id))
}

// List decodes every document of collection in key order.
func List[T any](tx *Tx, collection string) ([]T, error) {
	return Filter(tx, collection, func(T) bool { return true })
}

// Filter decodes the documents of collection accepted by keep, in key order.
func Filter[T any](tx *Tx, collection string, keep func(T) bool) ([]T, error) {
	b, err := tx.bucket(collection, false)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if b == nil {
		return out, nil
	}
	err = b.ForEach(func(k, raw []byte) error {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("store decode %s/%s: %w", collection, k, err)
		}
		if keep(item) {
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of documents in collection.
func Count(tx *Tx, collection string) (int, error) {
	b, err := tx.bucket(collection, false)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return b.Stats().KeyN, nil
}

// PutIndex binds key to id in the unique index. Rebinding a key to the same id
// is a no-op; binding it to a different id fails with ErrIndexTaken.
func PutIndex(tx *Tx, index, key, id string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty index key", ErrInvalidKey)
	}
	b, err := tx.bucket(indexPrefix+index, true)
	if err != nil {
		return err
	}
	if cur := b.Get([]byte(key)); cur != nil && string(cur) != id {
		return fmt.Errorf("%w: %s[%s]", ErrIndexTaken, index, key)
	}
	return b.Put([]byte(key), []byte(id))
}

// LookupIndex returns the id bound to key.
func LookupIndex(tx *Tx, index, key string) (string, error) {
	b, err := tx.bucket(indexPrefix+index, false)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", fmt.Errorf("%w: %s[%s]", ErrNotFound, index, key)
	}
	v := b.Get([]byte(key))
	if v == nil {
		return "", fmt.Errorf("%w: %s[%s]", ErrNotFound, index, key)
	}
	return string(v), nil
}

// DeleteIndex removes key from the index. Missing keys are ignored.
func DeleteIndex(tx *Tx, index, key string) error {
	b, err := tx.bucket(indexPrefix+index, false)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	if !tx.btx.Writable() {
		return ErrReadOnlyTx
	}
	return b.Delete([]byte(key))
}
