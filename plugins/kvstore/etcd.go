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
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/coreos/etcd/clientv3"
	"github.com/ligato/cn-infra/config"
	"github.com/ligato/cn-infra/db/keyval"
	"github.com/ligato/cn-infra/db/keyval/etcd"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"
)

const (
	// EtcdHostEnvVar overrides the default etcd host when no config file exists.
	EtcdHostEnvVar = "ETCD_HOST"
	// EtcdPortEnvVar overrides the default etcd port when no config file exists.
	EtcdPortEnvVar = "ETCD_PORT"

	// DefaultEtcdHost is the cluster VIP of etcd.
	DefaultEtcdHost = "fd65:7b9c:569:680:98eb:c508:ea6b:b0b2"
	// DefaultEtcdPort is the client port of etcd.
	DefaultEtcdPort = "4001"

	defaultDialTimeout = 5 * time.Second
	defaultOpTimeout   = 3 * time.Second
)

// LoadEtcdConfig reads etcd client configuration from the given YAML file.
// If the file does not exist, the configuration is built from the ETCD_HOST
// and ETCD_PORT environment variables.
func LoadEtcdConfig(configFile string) (*etcd.Config, error) {
	cfg := &etcd.Config{}
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := config.ParseConfigFromYamlFile(configFile, cfg); err != nil {
				return nil, errors.Wrapf(err, "unable to parse etcd config %s", configFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []string{endpointFromEnv()}
		cfg.InsecureTransport = true
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	return cfg, nil
}

// endpointFromEnv builds the etcd endpoint URL from the environment.
func endpointFromEnv() string {
	host := os.Getenv(EtcdHostEnvVar)
	if host == "" {
		host = DefaultEtcdHost
	}
	port := os.Getenv(EtcdPortEnvVar)
	if port == "" {
		port = DefaultEtcdPort
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return "http://" + net.JoinHostPort(host, port)
}

// EtcdBroker is a connection to etcd in which every call is bounded by the
// operation timeout and by the context the connection was opened with.
type EtcdBroker struct {
	ctx       context.Context
	client    *clientv3.Client
	opTimeout time.Duration
	log       logging.Logger
}

// ConnectEtcd opens a connection to etcd described by the given config.
// Dialing is bounded by the dial timeout and by ctx; ctx also bounds every
// later call of the returned broker. Failure to connect is reported as
// ErrStoreUnavailable.
func ConnectEtcd(ctx context.Context, cfg *etcd.Config, log logging.Logger) (*EtcdBroker, error) {
	clientCfg, err := etcd.ConfigToClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "invalid etcd config")
	}

	endpoints := strings.Join(cfg.Endpoints, ",")
	log.Debugf("Connecting to etcd at %s", endpoints)
	return newEtcdBroker(ctx, *clientCfg.Config, clientCfg.OpTimeout, log)
}

func newEtcdBroker(ctx context.Context, cfg clientv3.Config, opTimeout time.Duration, log logging.Logger) (*EtcdBroker, error) {
	endpoints := strings.Join(cfg.Endpoints, ",")
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("connect", endpoints, err)
	}
	cfg.Context = ctx
	client, err := clientv3.New(cfg)
	if err != nil {
		// any dial failure means the store cannot be reached
		return nil, Unavailable("connect", endpoints, err)
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &EtcdBroker{
		ctx:       ctx,
		client:    client,
		opTimeout: opTimeout,
		log:       log,
	}, nil
}

// GetValue retrieves the value stored under the given key.
func (b *EtcdBroker) GetValue(key string) (data []byte, found bool, revision int64, err error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.opTimeout)
	defer cancel()

	resp, err := b.client.Get(ctx, key)
	if err != nil {
		return nil, false, 0, Classify("get", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, resp.Header.GetRevision(), nil
	}
	kv := resp.Kvs[0]
	return kv.Value, true, kv.ModRevision, nil
}

// ListValues returns all key-value pairs with the given key prefix, ordered by key.
func (b *EtcdBroker) ListValues(prefix string) (keyval.BytesKeyValIterator, error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.opTimeout)
	defer cancel()

	resp, err := b.client.Get(ctx, prefix, clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, Classify("list", prefix, err)
	}
	it := &kvIterator{}
	for _, kv := range resp.Kvs {
		it.pairs = append(it.pairs, &kvPair{key: string(kv.Key), value: kv.Value, rev: kv.ModRevision})
	}
	return it, nil
}

// PutIfNotExists creates the key unless it already exists, in one transaction
// comparing the create revision of the key to zero.
func (b *EtcdBroker) PutIfNotExists(key string, value []byte) (succeeded bool, err error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.opTimeout)
	defer cancel()

	resp, err := b.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return false, Classify("put", key, err)
	}
	return resp.Succeeded, nil
}

// Close releases the connection.
func (b *EtcdBroker) Close() error {
	b.log.Debug("Closing etcd connection")
	return b.client.Close()
}

type kvIterator struct {
	pairs []*kvPair
	index int
}

// GetNext returns the next pair, stop is true after the last one.
func (it *kvIterator) GetNext() (kv keyval.BytesKeyVal, stop bool) {
	if it.index >= len(it.pairs) {
		return nil, true
	}
	kv = it.pairs[it.index]
	it.index++
	return kv, false
}

type kvPair struct {
	key   string
	value []byte
	rev   int64
}

func (kv *kvPair) GetKey() string {
	return kv.key
}

func (kv *kvPair) GetValue() []byte {
	return kv.value
}

func (kv *kvPair) GetPrevValue() []byte {
	return nil
}

func (kv *kvPair) GetRevision() int64 {
	return kv.rev
}
