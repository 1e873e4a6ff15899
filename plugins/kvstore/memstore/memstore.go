// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memstore implements an in-memory key-value store with the
// create-only semantics of etcd, backed by go-memdb.
//
// Write transactions of go-memdb are serialized, which makes PutIfNotExists
// linearizable per key, exactly as required from the cluster-wide store.
// The store is used in tests and for dry runs of the bootstrap pipeline.
package memstore

import (
	"sync/atomic"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/ligato/cn-infra/db/keyval"
	"github.com/pkg/errors"
)

const (
	kvTable = "kv"
	idIndex = "id"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			kvTable: {
				Name: kvTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:         idIndex,
						AllowMissing: false,
						Unique:       true,
						Indexer:      &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
		},
	}
}

// entry is a single stored key-value pair.
type entry struct {
	Key      string
	Value    []byte
	Revision int64
}

// Store is an in-memory key-value store.
type Store struct {
	db       *memdb.MemDB
	revision int64
	closed   int32
}

// errClosed is returned by every operation on a closed store.
var errClosed = errors.New("store is closed")

// New creates an empty Store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// GetValue retrieves the value stored under the given key.
func (s *Store) GetValue(key string) (data []byte, found bool, revision int64, err error) {
	if s.isClosed() {
		return nil, false, 0, errClosed
	}
	txn := s.db.Txn(false)
	obj, err := txn.First(kvTable, idIndex, key)
	if err != nil || obj == nil {
		return nil, false, 0, err
	}
	e := obj.(*entry)
	return append([]byte(nil), e.Value...), true, e.Revision, nil
}

// ListValues returns all key-value pairs with the given key prefix, ordered by key.
func (s *Store) ListValues(prefix string) (keyval.BytesKeyValIterator, error) {
	if s.isClosed() {
		return nil, errClosed
	}
	txn := s.db.Txn(false)
	resIt, err := txn.Get(kvTable, idIndex+"_prefix", prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "list of %s failed", prefix)
	}
	it := &iterator{}
	for obj := resIt.Next(); obj != nil; obj = resIt.Next() {
		it.entries = append(it.entries, obj.(*entry))
	}
	return it, nil
}

// PutIfNotExists stores the value only if the key does not exist yet.
func (s *Store) PutIfNotExists(key string, value []byte) (succeeded bool, err error) {
	if s.isClosed() {
		return false, errClosed
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(kvTable, idIndex, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := s.insert(txn, key, value); err != nil {
		return false, err
	}
	txn.Commit()
	return true, nil
}

// Put stores the value, overwriting any previous one.
func (s *Store) Put(key string, value []byte) error {
	if s.isClosed() {
		return errClosed
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := s.insert(txn, key, value); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	txn := s.db.Txn(false)
	resIt, err := txn.Get(kvTable, idIndex)
	if err != nil {
		return 0
	}
	n := 0
	for obj := resIt.Next(); obj != nil; obj = resIt.Next() {
		n++
	}
	return n
}

// Close makes all subsequent operations fail.
func (s *Store) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

func (s *Store) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// insert must be called from within a write transaction.
func (s *Store) insert(txn *memdb.Txn, key string, value []byte) error {
	s.revision++
	return txn.Insert(kvTable, &entry{
		Key:      key,
		Value:    append([]byte(nil), value...),
		Revision: s.revision,
	})
}

// iterator iterates over a snapshot of listed entries.
type iterator struct {
	entries []*entry
	index   int
}

// GetNext returns the next key-value pair, stop is true once all pairs were returned.
func (it *iterator) GetNext() (kv keyval.BytesKeyVal, stop bool) {
	if it.index >= len(it.entries) {
		return nil, true
	}
	e := it.entries[it.index]
	it.index++
	return &kvPair{entry: e}, false
}

// Close is NOOP.
func (it *iterator) Close() error {
	return nil
}

// kvPair implements keyval.BytesKeyVal.
type kvPair struct {
	entry *entry
}

func (kv *kvPair) GetKey() string {
	return kv.entry.Key
}

func (kv *kvPair) GetValue() []byte {
	return kv.entry.Value
}

func (kv *kvPair) GetPrevValue() []byte {
	return nil
}

func (kv *kvPair) GetRevision() int64 {
	return kv.entry.Revision
}
