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

package ipalloc

import (
	"context"
	"fmt"
	"net"

	"github.com/ligato/cn-infra/db/keyval"
)

// DefaultKeyPrefix is the namespace of address allocations in the store.
const DefaultKeyPrefix = "/kubermesh.github.io/ip-allocator/ipv4/"

// API defines methods provided by the address allocator.
type API interface {
	// Allocate returns the address allocated for the given machine identity,
	// claiming a new one from the pool if the machine has none yet.
	Allocate(ctx context.Context, identity string) (net.IP, error)

	// Lookup returns the address already allocated for the given machine
	// identity, without writing anything into the store.
	Lookup(ctx context.Context, identity string) (ip net.IP, found bool, err error)

	// Allocations lists all allocations, in ascending order of addresses.
	Allocations(ctx context.Context) ([]*Allocation, error)
}

// ClusterWideDB defines API that a DB client must provide for the allocator.
type ClusterWideDB interface {
	// ListValues returns an iterator over all key-value pairs with the given
	// key prefix. A prefix without any key yields an empty iterator.
	ListValues(prefix string) (keyval.BytesKeyValIterator, error)

	// PutIfNotExists atomically puts given key-value pair into DB if there
	// is no value set for the key.
	PutIfNotExists(key string, value []byte) (succeeded bool, err error)
}

// Allocation binds an address to the machine that claimed it.
type Allocation struct {
	Address  net.IP
	Identity string
}

// String returns a human-readable representation of the allocation.
func (a *Allocation) String() string {
	return fmt.Sprintf("%s -> %s", a.Address, a.Identity)
}
