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
	"net"
	"sort"

	"github.com/ligato/cn-infra/db/keyval"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/kubermesh/ip-allocator/plugins/kvstore"
)

// errors returned by the allocator (store errors are passed through)
var (
	// ErrPoolExhausted is returned when every address of the pool is taken
	// by another machine.
	ErrPoolExhausted = errors.New("address pool exhausted")

	// ErrStoreUnavailable matches store errors caused by timeouts or lost connection.
	ErrStoreUnavailable = kvstore.ErrStoreUnavailable

	// ErrEmptyIdentity is returned for an empty machine identity.
	ErrEmptyIdentity = errors.New("machine identity must not be empty")

	errWithoutDB   = errors.New("unable to allocate address: database is not provided")
	errWithoutPool = errors.New("unable to allocate address: pool is not defined")
)

// Allocator claims IPv4 addresses from a pool shared by the whole cluster.
// It keeps no state between calls, all state lives in the DB.
type Allocator struct {
	Deps
}

// Deps lists dependencies of Allocator.
type Deps struct {
	Log     logging.Logger
	DB      ClusterWideDB
	Pool    *Pool
	Metrics *Metrics

	// KeyPrefix is the namespace of allocations in DB.
	KeyPrefix string
}

// Allocate returns the address allocated for the given machine identity,
// claiming the lowest free address of the pool if the machine has none yet.
func (a *Allocator) Allocate(ctx context.Context, identity string) (ip net.IP, err error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	if a.Pool == nil {
		return nil, errWithoutPool
	}

	allocations, err := a.Allocations(ctx)
	if err != nil {
		a.Metrics.Allocations.WithLabelValues(resultError).Inc()
		return nil, err
	}

	// idempotence: the machine may have claimed an address already
	if own := findAllocation(allocations, identity); own != nil {
		a.Metrics.Allocations.WithLabelValues(resultExisting).Inc()
		a.Log.Infof("Using already allocated address %v for %s", own.Address, identity)
		return own.Address, nil
	}

	taken := make(map[uint32]struct{}, len(allocations))
	for _, alloc := range allocations {
		if val, err := ipv4ToUint32(alloc.Address); err == nil {
			taken[val] = struct{}{}
		}
	}

	a.Pool.forEach(func(candidate uint32) bool {
		if _, isTaken := taken[candidate]; isTaken {
			return true
		}
		var claimed bool
		claimed, err = a.claim(ctx, candidate, identity)
		if err != nil {
			return false
		}
		if claimed {
			ip = uint32ToIpv4(candidate)
			return false
		}
		return true
	})

	switch {
	case err != nil:
		a.Metrics.Allocations.WithLabelValues(resultError).Inc()
		return nil, err
	case ip == nil:
		a.Metrics.Allocations.WithLabelValues(resultExhausted).Inc()
		return nil, errors.Wrapf(ErrPoolExhausted, "all %d addresses of %v are allocated", a.Pool.Size(), a.Pool)
	}
	a.Metrics.Allocations.WithLabelValues(resultClaimed).Inc()
	a.Log.Infof("Allocated address %v for %s", ip, identity)
	return ip, nil
}

// claim tries to create the allocation record of the given address.
// A conflict (address claimed by someone else) is not an error.
func (a *Allocator) claim(ctx context.Context, candidate uint32, identity string) (bool, error) {
	key := Key(a.KeyPrefix, uint32ToIpv4(candidate))
	if err := ctx.Err(); err != nil {
		return false, kvstore.Unavailable("put", key, err)
	}

	a.Metrics.ClaimAttempts.Inc()
	var succeeded bool
	err := kvstore.Call(ctx, "put", key, func() (err error) {
		succeeded, err = a.DB.PutIfNotExists(key, []byte(identity))
		return err
	})
	if err != nil {
		return false, err
	}
	if !succeeded {
		a.Metrics.ClaimConflicts.Inc()
		a.Log.Debugf("Address %v was claimed concurrently, trying the next one", uint32ToIpv4(candidate))
	}
	return succeeded, nil
}

// Lookup returns the address already allocated for the given machine identity.
func (a *Allocator) Lookup(ctx context.Context, identity string) (ip net.IP, found bool, err error) {
	if identity == "" {
		return nil, false, ErrEmptyIdentity
	}
	allocations, err := a.Allocations(ctx)
	if err != nil {
		return nil, false, err
	}
	if own := findAllocation(allocations, identity); own != nil {
		return own.Address, true, nil
	}
	return nil, false, nil
}

// Allocations lists all allocations stored in DB, in ascending order of addresses.
// Keys that do not hold an IPv4 address are skipped.
func (a *Allocator) Allocations(ctx context.Context) ([]*Allocation, error) {
	if a.DB == nil {
		return nil, errWithoutDB
	}
	prefix := normalizePrefix(a.KeyPrefix)

	var it keyval.BytesKeyValIterator
	err := kvstore.Call(ctx, "list", prefix, func() (err error) {
		it, err = a.DB.ListValues(prefix)
		return err
	})
	if err != nil {
		return nil, err
	}

	var allocations []*Allocation
	for {
		kv, stop := it.GetNext()
		if stop {
			break
		}
		ip := ParseKey(prefix, kv.GetKey())
		if ip == nil {
			a.Log.Warnf("Invalid allocation key: %s", kv.GetKey())
			continue
		}
		allocations = append(allocations, &Allocation{
			Address:  ip,
			Identity: string(kv.GetValue()),
		})
	}

	// keys are ordered as strings, not as addresses
	sort.Slice(allocations, func(i, j int) bool {
		vi, _ := ipv4ToUint32(allocations[i].Address)
		vj, _ := ipv4ToUint32(allocations[j].Address)
		return vi < vj
	})
	return allocations, nil
}

// findAllocation returns the lowest allocation of the given identity.
// Allocations have to be sorted.
func findAllocation(allocations []*Allocation, identity string) *Allocation {
	for _, alloc := range allocations {
		if alloc.Identity == identity {
			return alloc
		}
	}
	return nil
}
