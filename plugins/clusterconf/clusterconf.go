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

// Package clusterconf reads cluster-wide network configuration (the base
// networks shared by all nodes) from the key-value store. The configuration
// is read-only for this module; it is populated by the cluster operator.
package clusterconf

import (
	"context"
	"net"
	"strings"

	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/kubermesh/ip-allocator/plugins/kvstore"
)

const (
	// DefaultKeyPrefix is the namespace of cluster configuration in the store.
	DefaultKeyPrefix = "/kubermesh.github.io/ip-allocator/config/"

	// IPv6BaseNetworkKey holds the base network of node IPv6 networks.
	IPv6BaseNetworkKey = "ipv6-base-network"
	// IPv4BaseNetworkKey holds the network from which node IPv4 addresses are allocated.
	IPv4BaseNetworkKey = "ipv4-base-network"
)

// ErrNotConfigured is returned when a configuration key is missing in the store.
var ErrNotConfigured = errors.New("configuration value not set")

// Reader defines API that a DB client must provide to read the configuration.
type Reader interface {
	GetValue(key string) (data []byte, found bool, revision int64, err error)
}

// ClusterConf reads configuration values stored under KeyPrefix.
type ClusterConf struct {
	Deps
}

// Deps lists dependencies of ClusterConf.
type Deps struct {
	Log       logging.Logger
	DB        Reader
	KeyPrefix string
}

// NewClusterConf creates ClusterConf with injected dependencies.
func NewClusterConf(f func(*Deps)) *ClusterConf {
	c := &ClusterConf{}
	c.KeyPrefix = DefaultKeyPrefix
	if f != nil {
		f(&c.Deps)
	}
	if c.Log == nil {
		c.Log = logging.ForPlugin("clusterconf")
	}
	return c
}

// Get returns the configuration value stored under the given key.
func (c *ClusterConf) Get(ctx context.Context, key string) (string, error) {
	if c.DB == nil {
		return "", errors.New("unable to read configuration: database is not provided")
	}
	fullKey := c.key(key)

	var (
		data  []byte
		found bool
	)
	err := kvstore.Call(ctx, "get", fullKey, func() (err error) {
		data, found, _, err = c.DB.GetValue(fullKey)
		return err
	})
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if !found || value == "" {
		return "", errors.Wrapf(ErrNotConfigured, "key %s", fullKey)
	}
	c.Log.Debugf("Configuration %s = %s", key, value)
	return value, nil
}

// IPv6BaseNetwork returns the base network of node IPv6 networks.
func (c *ClusterConf) IPv6BaseNetwork(ctx context.Context) (*net.IPNet, error) {
	value, err := c.Get(ctx, IPv6BaseNetworkKey)
	if err != nil {
		return nil, err
	}
	return ParseNetwork(IPv6BaseNetworkKey, value, true)
}

// IPv4BaseNetwork returns the network of the IPv4 address pool.
func (c *ClusterConf) IPv4BaseNetwork(ctx context.Context) (*net.IPNet, error) {
	value, err := c.Get(ctx, IPv4BaseNetworkKey)
	if err != nil {
		return nil, err
	}
	return ParseNetwork(IPv4BaseNetworkKey, value, false)
}

// ParseNetwork parses the value of a base network setting and checks
// its address family.
func ParseNetwork(name, value string, ipv6 bool) (*net.IPNet, error) {
	_, network, err := net.ParseCIDR(strings.TrimSpace(value))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", name)
	}
	isIPv4 := network.IP.To4() != nil
	switch {
	case ipv6 && isIPv4:
		return nil, errors.Errorf("%s %v is not an IPv6 network", name, network)
	case !ipv6 && !isIPv4:
		return nil, errors.Errorf("%s %v is not an IPv4 network", name, network)
	}
	return network, nil
}

func (c *ClusterConf) key(key string) string {
	prefix := c.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}
