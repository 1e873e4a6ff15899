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
	"fmt"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"
)

// Pool is an inclusive range of IPv4 addresses, consumed in ascending order.
type Pool struct {
	first uint32
	last  uint32
}

// NewPool creates a pool of all addresses between first and last (inclusive).
func NewPool(first, last net.IP) (*Pool, error) {
	firstVal, err := ipv4ToUint32(first)
	if err != nil {
		return nil, err
	}
	lastVal, err := ipv4ToUint32(last)
	if err != nil {
		return nil, err
	}
	if firstVal > lastVal {
		return nil, fmt.Errorf("pool start %v is above pool end %v", first, last)
	}
	return &Pool{first: firstVal, last: lastVal}, nil
}

// PoolFromNetwork creates a pool of every address of the given IPv4 network,
// network and broadcast address included.
func PoolFromNetwork(network *net.IPNet) (*Pool, error) {
	if network == nil || network.IP.To4() == nil {
		return nil, errors.Errorf("pool network %v is not an IPv4 network", network)
	}
	if _, bits := network.Mask.Size(); bits != 8*net.IPv4len {
		return nil, errors.Errorf("pool network %v is not an IPv4 network", network)
	}
	first, last := cidr.AddressRange(network)
	return NewPool(first, last)
}

// PoolFromRange creates a pool limited to [start, end] of the given network.
// Nil start or end stands for the first or last address of the network.
func PoolFromRange(network *net.IPNet, start, end net.IP) (*Pool, error) {
	pool, err := PoolFromNetwork(network)
	if err != nil {
		return nil, err
	}
	first, last := pool.First(), pool.Last()
	if start != nil {
		if !network.Contains(start) {
			return nil, errors.Errorf("pool start %v is outside of %v", start, network)
		}
		first = start
	}
	if end != nil {
		if !network.Contains(end) {
			return nil, errors.Errorf("pool end %v is outside of %v", end, network)
		}
		last = end
	}
	return NewPool(first, last)
}

// First returns the lowest address of the pool.
func (p *Pool) First() net.IP {
	return uint32ToIpv4(p.first)
}

// Last returns the highest address of the pool.
func (p *Pool) Last() net.IP {
	return uint32ToIpv4(p.last)
}

// Size returns the number of addresses in the pool.
func (p *Pool) Size() uint64 {
	return uint64(p.last-p.first) + 1
}

// Contains returns true if the address belongs to the pool.
func (p *Pool) Contains(ip net.IP) bool {
	val, err := ipv4ToUint32(ip)
	if err != nil {
		return false
	}
	return val >= p.first && val <= p.last
}

// String returns a human-readable representation of the pool.
func (p *Pool) String() string {
	return fmt.Sprintf("%v-%v", p.First(), p.Last())
}

// forEach calls cb for every address of the pool in ascending order,
// until cb returns false.
func (p *Pool) forEach(cb func(ip uint32) bool) {
	for ip := p.first; ; ip++ {
		if !cb(ip) || ip == p.last {
			return
		}
	}
}

// ipv4ToUint32 is simple utility function for conversion between IPv4 and uint32.
func ipv4ToUint32(ip net.IP) (uint32, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("ip address %v is not an ipv4 address", ip)
	}
	var tmp uint32
	for _, bytePart := range ip4 {
		tmp = tmp<<8 + uint32(bytePart)
	}
	return tmp, nil
}

// uint32ToIpv4 is simple utility function for conversion between IPv4 and uint32.
func uint32ToIpv4(ip uint32) net.IP {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip)).To4()
}
