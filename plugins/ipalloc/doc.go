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

// Package ipalloc allocates a cluster-wide unique IPv4 address for a machine
// from a pool shared by all machines of the cluster, without any central
// allocator process.
//
// Allocations are persisted in the key-value store, one key per address
// (<prefix><address>) with the machine identity as the value. The only
// concurrency control is the atomic create-only write (PutIfNotExists):
//   1. all allocations are listed; if one belongs to the machine, its
//      address is returned (allocation is idempotent),
//   2. otherwise the pool is walked in ascending order and every address not
//      known to be taken is claimed with PutIfNotExists; the first successful
//      claim wins, a conflict moves on to the next address.
//
// Addresses are never released.
package ipalloc
