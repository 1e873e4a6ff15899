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

package kvstore

import (
	"github.com/ligato/cn-infra/db/keyval"
	"github.com/ligato/cn-infra/db/keyval/etcd"
)

// Broker is the subset of the cn-infra bytes broker used by this module.
// It is implemented by EtcdBroker and by memstore.Store, and matches
// the method set of the cn-infra etcd connection.
type Broker interface {
	// GetValue retrieves the value stored under the given key.
	GetValue(key string) (data []byte, found bool, revision int64, err error)

	// ListValues returns an iterator over all key-value pairs whose key
	// starts with the given prefix, ordered by key.
	ListValues(prefix string) (keyval.BytesKeyValIterator, error)

	// PutIfNotExists atomically puts given key-value pair into the store
	// if there is no value set for the key.
	PutIfNotExists(key string, value []byte) (succeeded bool, err error)

	// Close releases the connection.
	Close() error
}

var (
	_ Broker = (*EtcdBroker)(nil)
	_ Broker = (*etcd.BytesConnectionEtcd)(nil)
)
