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

package bootstrap

import (
	"context"
	"net"

	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kubermesh/ip-allocator/pkg/hwaddr"
	"github.com/kubermesh/ip-allocator/plugins/artifacts"
	"github.com/kubermesh/ip-allocator/plugins/clusterconf"
	"github.com/kubermesh/ip-allocator/plugins/hwident"
	"github.com/kubermesh/ip-allocator/plugins/ipalloc"
	"github.com/kubermesh/ip-allocator/plugins/subnet"
)

// Store defines API that a DB client must provide for the bootstrap.
type Store interface {
	ipalloc.ClusterWideDB
	clusterconf.Reader
}

// Bootstrap runs the node network bootstrap.
type Bootstrap struct {
	Deps

	conf     *clusterconf.ClusterConf
	selector *hwident.Selector
	metrics  *ipalloc.Metrics
	writer   *artifacts.Writer
}

// Deps lists dependencies of Bootstrap.
type Deps struct {
	Log    logging.Logger
	Config *Config

	// DB may be nil for Derive when the IPv6 base network is set in Config.
	DB Store
	// Enumerator defaults to netlink enumeration of the host interfaces.
	Enumerator hwident.Enumerator
	// Registerer, if set, receives the allocation metrics.
	Registerer prometheus.Registerer
}

// Result describes the network identity of the node.
type Result struct {
	Identifier  hwaddr.Candidate
	Hierarchy   *subnet.Hierarchy
	IPv4Address net.IP
	// Files lists written artifacts, relative to the target directory.
	Files []string
}

// Derive selects the hardware identifier and derives the IPv6 network
// hierarchy of the node. Nothing is written.
func (b *Bootstrap) Derive(ctx context.Context) (*Result, error) {
	base, err := b.ipv6BaseNetwork(ctx)
	if err != nil {
		return nil, err
	}
	id, err := b.selector.Select()
	if err != nil {
		return nil, err
	}
	hierarchy, err := subnet.Derive(base, id.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to derive node network from %v and %s", base, id)
	}
	b.Log.Infof("Derived node network %v (pod network %v, host address %v)",
		hierarchy.Node, hierarchy.Pod, hierarchy.HostAddress)
	return &Result{Identifier: id, Hierarchy: hierarchy}, nil
}

// Run performs the whole bootstrap for the machine of the given identity.
// Artifacts are written only after the network hierarchy and the IPv4
// address are known; on any error nothing is written.
func (b *Bootstrap) Run(ctx context.Context, identity string) (*Result, error) {
	if identity == "" {
		return nil, ipalloc.ErrEmptyIdentity
	}
	if b.DB == nil {
		return nil, errors.New("bootstrap requires a database connection")
	}

	result, err := b.Derive(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := b.pool(ctx)
	if err != nil {
		return nil, err
	}
	result.IPv4Address, err = b.allocator(pool).Allocate(ctx, identity)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to allocate IPv4 address for %s", identity)
	}

	files, err := artifacts.Render(result.Hierarchy, result.IPv4Address)
	if err != nil {
		return nil, err
	}
	if err = b.writer.Write(files); err != nil {
		return nil, err
	}
	for _, file := range files {
		result.Files = append(result.Files, file.Path)
	}

	b.Log.Infof("Bootstrap of %s done: node network %v, IPv4 address %v, %d files written to %s",
		identity, result.Hierarchy.Node, result.IPv4Address, len(files), b.writer.TargetDir)
	return result, nil
}

// Show returns the IPv4 address already allocated for the given identity.
// Nothing is written.
func (b *Bootstrap) Show(ctx context.Context, identity string) (ip net.IP, found bool, err error) {
	if b.DB == nil {
		return nil, false, errors.New("lookup requires a database connection")
	}
	return b.allocator(nil).Lookup(ctx, identity)
}

// Allocations lists all IPv4 address allocations of the cluster.
func (b *Bootstrap) Allocations(ctx context.Context) ([]*ipalloc.Allocation, error) {
	if b.DB == nil {
		return nil, errors.New("listing allocations requires a database connection")
	}
	return b.allocator(nil).Allocations(ctx)
}

func (b *Bootstrap) allocator(pool *ipalloc.Pool) *ipalloc.Allocator {
	return ipalloc.NewAllocator(ipalloc.UseDeps(func(deps *ipalloc.Deps) {
		deps.Log = b.Log
		deps.DB = b.DB
		deps.Pool = pool
		deps.Metrics = b.metrics
		deps.KeyPrefix = b.Config.AllocationPrefix
	}))
}

func (b *Bootstrap) ipv6BaseNetwork(ctx context.Context) (*net.IPNet, error) {
	if b.Config.IPv6BaseNetwork != "" {
		return clusterconf.ParseNetwork(clusterconf.IPv6BaseNetworkKey, b.Config.IPv6BaseNetwork, true)
	}
	if b.DB == nil {
		return nil, errors.Errorf("%s is not set locally and no database is available", clusterconf.IPv6BaseNetworkKey)
	}
	return b.conf.IPv6BaseNetwork(ctx)
}

func (b *Bootstrap) ipv4BaseNetwork(ctx context.Context) (*net.IPNet, error) {
	if b.Config.IPv4BaseNetwork != "" {
		return clusterconf.ParseNetwork(clusterconf.IPv4BaseNetworkKey, b.Config.IPv4BaseNetwork, false)
	}
	return b.conf.IPv4BaseNetwork(ctx)
}

// pool builds the IPv4 pool from the base network, optionally narrowed
// to the configured range.
func (b *Bootstrap) pool(ctx context.Context) (*ipalloc.Pool, error) {
	network, err := b.ipv4BaseNetwork(ctx)
	if err != nil {
		return nil, err
	}
	if b.Config.PoolRangeStart == "" {
		return ipalloc.PoolFromNetwork(network)
	}
	return ipalloc.PoolFromRange(network, net.ParseIP(b.Config.PoolRangeStart), net.ParseIP(b.Config.PoolRangeEnd))
}
