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

package subnet

import (
	"fmt"
	"math/big"
	"net"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"
)

const (
	// IdentifierBits is the number of bits taken by the hardware address.
	IdentifierBits = 48

	// VIPPrefixLen is the prefix length of the VIP and cluster-interface blocks.
	VIPPrefixLen = 123

	// ClusterPrefixLen is the prefix length of a single cluster-interface subnet.
	ClusterPrefixLen = 126

	// host address sequence numbers inside the VIP block
	hostAddressSeqID    = 0
	overlayAddressSeqID = 1
)

var (
	// ErrPrefixOverflow is returned when the base network is too large
	// (prefix too long) to be extended by the hardware address.
	ErrPrefixOverflow = errors.New("base network prefix too long to embed hardware address")

	// ErrInvalidIdentifier is returned for hardware addresses that are not 48 bits long.
	ErrInvalidIdentifier = errors.New("hardware address must be 48 bits long")

	// ErrInvalidBaseNetwork is returned for a missing or non-canonical base network.
	ErrInvalidBaseNetwork = errors.New("invalid base network")
)

// Hierarchy is the set of networks derived for a single node.
type Hierarchy struct {
	// Node is the network owned by the node (base network + hardware address).
	Node *net.IPNet
	// Host is the lower half of Node.
	Host *net.IPNet
	// Pod is the upper half of Node, used for workloads.
	Pod *net.IPNet
	// VIP is the first VIPPrefixLen block of Host.
	VIP *net.IPNet
	// ClusterInterface is the second VIPPrefixLen block of Host.
	ClusterInterface *net.IPNet
	// Cluster lists the ClusterPrefixLen subnets of ClusterInterface in ascending order.
	Cluster []*net.IPNet

	// HostAddress is the first address of VIP, assigned to the host itself.
	HostAddress net.IP
	// OverlayAddress is the second address of VIP, used by the IPv4 overlay.
	OverlayAddress net.IP
}

// Subnets returns the leaf subnets of the hierarchy. They never overlap each
// other and together with the unused rest of Host they cover Node.
func (h *Hierarchy) Subnets() []*net.IPNet {
	subnets := []*net.IPNet{h.Pod, h.VIP}
	return append(subnets, h.Cluster...)
}

// String returns a human-readable representation of the hierarchy.
func (h *Hierarchy) String() string {
	if h == nil {
		return "<nil>"
	}
	var cluster []string
	for _, c := range h.Cluster {
		cluster = append(cluster, c.String())
	}
	return fmt.Sprintf("<Node: %s, Host: %s, Pod: %s, VIP: %s, Cluster: [%s]>",
		h.Node, h.Host, h.Pod, h.VIP, strings.Join(cluster, ", "))
}

// Derive computes the network hierarchy of the node identified by the given
// hardware address.
func Derive(base *net.IPNet, id net.HardwareAddr) (*Hierarchy, error) {
	node, err := NodeNetwork(base, id)
	if err != nil {
		return nil, err
	}
	nodePrefixLen, _ := node.Mask.Size()
	if nodePrefixLen+1 >= VIPPrefixLen {
		return nil, errors.Wrapf(ErrPrefixOverflow,
			"node network %s leaves no room for /%d blocks", node, VIPPrefixLen)
	}

	h := &Hierarchy{Node: node}
	if h.Host, err = cidr.Subnet(node, 1, 0); err != nil {
		return nil, err
	}
	if h.Pod, err = cidr.Subnet(node, 1, 1); err != nil {
		return nil, err
	}

	hostPrefixLen := nodePrefixLen + 1
	if h.VIP, err = cidr.Subnet(h.Host, VIPPrefixLen-hostPrefixLen, 0); err != nil {
		return nil, err
	}
	if h.ClusterInterface, err = cidr.Subnet(h.Host, VIPPrefixLen-hostPrefixLen, 1); err != nil {
		return nil, err
	}

	clusterBits := ClusterPrefixLen - VIPPrefixLen
	for i := 0; i < 1<<uint(clusterBits); i++ {
		clusterNet, err := cidr.Subnet(h.ClusterInterface, clusterBits, i)
		if err != nil {
			return nil, err
		}
		h.Cluster = append(h.Cluster, clusterNet)
	}

	if h.HostAddress, err = cidr.Host(h.VIP, hostAddressSeqID); err != nil {
		return nil, err
	}
	if h.OverlayAddress, err = cidr.Host(h.VIP, overlayAddressSeqID); err != nil {
		return nil, err
	}
	return h, nil
}

// NodeNetwork extends the base network prefix by IdentifierBits and stores
// the hardware address into the added bits.
func NodeNetwork(base *net.IPNet, id net.HardwareAddr) (*net.IPNet, error) {
	if len(id) != IdentifierBits/8 {
		return nil, errors.Wrapf(ErrInvalidIdentifier, "got %d bytes", len(id))
	}
	if base == nil {
		return nil, ErrInvalidBaseNetwork
	}
	ones, bits := base.Mask.Size()
	if bits == 0 {
		return nil, errors.Wrapf(ErrInvalidBaseNetwork, "non-canonical mask %s", base.Mask)
	}
	nodePrefixLen := ones + IdentifierBits
	if nodePrefixLen > bits {
		return nil, errors.Wrapf(ErrPrefixOverflow, "/%d + %d bits exceeds %d bits of %s",
			ones, IdentifierBits, bits, base)
	}

	baseIP := base.IP.Mask(base.Mask)
	if baseIP == nil {
		return nil, errors.Wrapf(ErrInvalidBaseNetwork, "address %s does not match mask", base.IP)
	}
	value := new(big.Int).SetBytes(baseIP)
	idValue := new(big.Int).SetBytes(id)
	value.Or(value, idValue.Lsh(idValue, uint(bits-nodePrefixLen)))

	nodeIP := make(net.IP, len(baseIP))
	value.FillBytes(nodeIP)
	return &net.IPNet{
		IP:   nodeIP,
		Mask: net.CIDRMask(nodePrefixLen, bits),
	}, nil
}
