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

// Package kvstore connects the allocator to the cluster-wide key-value store
// (etcd) and classifies store failures.
//
// Every key-value store used by this module has to provide linearizable
// create-only writes (PutIfNotExists); etcd implements them with
// a transaction comparing the create revision of the key to zero.
// Package memstore provides an in-memory implementation with the same
// guarantees.
package kvstore
