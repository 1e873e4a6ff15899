// Copyright (c) 2018 Cisco and/or its affiliates.
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

package broker

import (
	"sync"

	"github.com/ligato/cn-infra/db/keyval"

	"github.com/kubermesh/ip-allocator/plugins/kvstore/memstore"
)

// MockBroker is a key-value store for tests. It stores data in memory
// (memstore) and can inject failures and concurrent writes.
type MockBroker struct {
	*memstore.Store

	mu        sync.Mutex
	gets      int
	lists     int
	puts      int
	getErr    error
	listErr   error
	putErr    error
	beforePut func(key string)
	getBlock  <-chan struct{}
	listBlock <-chan struct{}
	putBlock  <-chan struct{}
}

// NewMockBroker creates an empty MockBroker.
func NewMockBroker() *MockBroker {
	store, err := memstore.New()
	if err != nil {
		panic(err)
	}
	return &MockBroker{Store: store}
}

// GetValue counts the read and passes it to the in-memory store unless a failure is injected.
func (mb *MockBroker) GetValue(key string) (data []byte, found bool, revision int64, err error) {
	mb.mu.Lock()
	mb.gets++
	getErr := mb.getErr
	block := mb.getBlock
	mb.mu.Unlock()

	wait(block)
	if getErr != nil {
		return nil, false, 0, getErr
	}
	return mb.Store.GetValue(key)
}

// ListValues counts the listing and passes it to the in-memory store unless a failure is injected.
func (mb *MockBroker) ListValues(prefix string) (keyval.BytesKeyValIterator, error) {
	mb.mu.Lock()
	mb.lists++
	listErr := mb.listErr
	block := mb.listBlock
	mb.mu.Unlock()

	wait(block)
	if listErr != nil {
		return nil, listErr
	}
	return mb.Store.ListValues(prefix)
}

// PutIfNotExists counts the write, runs the BeforePut callback and passes
// the write to the in-memory store unless a failure is injected.
func (mb *MockBroker) PutIfNotExists(key string, value []byte) (succeeded bool, err error) {
	mb.mu.Lock()
	mb.puts++
	putErr := mb.putErr
	beforePut := mb.beforePut
	block := mb.putBlock
	mb.mu.Unlock()

	wait(block)
	if beforePut != nil {
		beforePut(key)
	}
	if putErr != nil {
		return false, putErr
	}
	return mb.Store.PutIfNotExists(key, value)
}

// FailGet makes every subsequent GetValue fail with err (nil clears the failure).
func (mb *MockBroker) FailGet(err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.getErr = err
}

// FailList makes every subsequent ListValues fail with err (nil clears the failure).
func (mb *MockBroker) FailList(err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.listErr = err
}

// FailPut makes every subsequent PutIfNotExists fail with err (nil clears the failure).
func (mb *MockBroker) FailPut(err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.putErr = err
}

// BeforePut registers a callback invoked before every PutIfNotExists,
// e.g. to simulate another machine claiming the same key.
func (mb *MockBroker) BeforePut(cb func(key string)) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.beforePut = cb
}

// BlockGet makes every subsequent GetValue hang until ch is closed
// (nil stops blocking new calls).
func (mb *MockBroker) BlockGet(ch <-chan struct{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.getBlock = ch
}

// BlockList makes every subsequent ListValues hang until ch is closed.
func (mb *MockBroker) BlockList(ch <-chan struct{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.listBlock = ch
}

// BlockPut makes every subsequent PutIfNotExists hang until ch is closed,
// simulating a store that accepted the connection but does not answer.
func (mb *MockBroker) BlockPut(ch <-chan struct{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.putBlock = ch
}

func wait(block <-chan struct{}) {
	if block != nil {
		<-block
	}
}

// PutCount returns the number of PutIfNotExists calls.
func (mb *MockBroker) PutCount() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.puts
}

// ListCount returns the number of ListValues calls.
func (mb *MockBroker) ListCount() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.lists
}

// GetCount returns the number of GetValue calls.
func (mb *MockBroker) GetCount() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.gets
}
