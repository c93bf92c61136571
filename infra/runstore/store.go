// Package runstore keeps the reports of past runs in a pebble database,
// keyed by run start time so iteration order is chronological.
package runstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const prefix = "run/"

// Store holds JSON-encoded values of type T.
type Store[T any] struct {
	db *pebble.DB
}

func Open[T any](dir string) (*Store[T], error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("runstore: open %s: %w", dir, err)
	}
	return &Store[T]{db: db}, nil
}

func (s *Store[T]) Close() error {
	return s.db.Close()
}

// Put stores v under the run's start time in unix nanos.
func (s *Store[T]) Put(startNanos int64, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("runstore: encode: %w", err)
	}
	return s.db.Set(keyFor(startNanos), b, pebble.Sync)
}

// Last returns the most recent run. ok is false on an empty store.
func (s *Store[T]) Last() (v T, ok bool, err error) {
	iter, err := s.newIter()
	if err != nil {
		return v, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return v, false, iter.Error()
	}
	if err := json.Unmarshal(iter.Value(), &v); err != nil {
		return v, false, fmt.Errorf("runstore: decode %s: %w", iter.Key(), err)
	}
	return v, true, nil
}

// List returns every stored run, oldest first.
func (s *Store[T]) List() ([]T, error) {
	iter, err := s.newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []T
	for iter.First(); iter.Valid(); iter.Next() {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return out, fmt.Errorf("runstore: decode %s: %w", iter.Key(), err)
		}
		out = append(out, v)
	}
	return out, iter.Error()
}

// Prune deletes all but the newest keep runs.
func (s *Store[T]) Prune(keep int) (int, error) {
	iter, err := s.newIter()
	if err != nil {
		return 0, err
	}
	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, bytes.Clone(iter.Key()))
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	drop := keys[:len(keys)-max(keep, 0)]
	for _, k := range drop {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(drop), nil
}

func (s *Store[T]) newIter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte("run/~"),
	})
}

func keyFor(startNanos int64) []byte {
	return []byte(fmt.Sprintf(prefix+"%020d", startNanos))
}
