// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/intelbatch/storage"
)

// Store implements storage.KV over a prefixed slice of a Backend's
// keyspace.
type Store struct {
	backend *Backend
	prefix  string
}

var _ storage.KV = (*Store)(nil)

func (s *Store) makeKey(key string) []byte {
	return []byte(s.prefix + key)
}

// Get returns the value stored under key and whether it exists.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(s.makeKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Put stores value under key.
func (s *Store) Put(key string, value []byte) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(s.makeKey(key), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(s.makeKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Keys returns all keys under the store's prefix.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.prefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := string(iter.Item().Key())
			keys = append(keys, strings.TrimPrefix(key, s.prefix))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Len returns the number of keys under the store's prefix.
func (s *Store) Len() (int, error) {
	keys, err := s.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close is a no-op; the shared Backend owns the database handle.
func (s *Store) Close() error {
	return nil
}
